package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/parcelbrief/internal/export"
	"github.com/stwalsh4118/parcelbrief/internal/geocoder"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/report"
)

// Output formats for the analyze command.
const (
	formatText = "text"
	formatJSON = "json"
	formatHTML = "html"
)

// commandTimeout bounds one pipeline run end to end.
const commandTimeout = 2 * time.Minute

func newAnalyzeCmd(build pipelineFactory) *cobra.Command {
	var (
		format   string
		xlsxPath string
	)

	cmd := &cobra.Command{
		Use:   "analyze <address>",
		Short: "Run the full analysis for an address",
		Long: `Geocode the address, fetch registry facts and print the generated report.

Facts that could not be fetched are shown with a placeholder and their source
status; the report falls back to a fixed notice when no model is available.`,
		Example: `  parcelbrief analyze "경기도 김포시 통진읍 도사리 163-1"
  parcelbrief analyze --format json "도사리 163-1" > facts.json
  parcelbrief analyze --xlsx dosa-ri.xlsx "도사리 163-1"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatText, formatJSON, formatHTML:
			default:
				return fmt.Errorf("unknown format %q (want text, json or html)", format)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			svc, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			address := strings.Join(args, " ")
			result, err := svc.Analyze(ctx, address)
			if err != nil {
				return describeGeocodeError(address, err)
			}

			if xlsxPath != "" {
				if err := writeWorkbook(xlsxPath, result.Analysis); err != nil {
					return err
				}
			}

			return printAnalysis(cmd.OutOrStdout(), result.Analysis, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or html")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the facts and report to this xlsx file")
	return cmd
}

func newResolveCmd(build pipelineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <address>",
		Short: "Print the parcel number (PNU) and coordinates for an address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			svc, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			address := strings.Join(args, " ")
			resolved, err := svc.ResolveParcel(ctx, address)
			if err != nil {
				return describeGeocodeError(address, err)
			}

			out := cmd.OutOrStdout()
			loc := resolved.Location
			fmt.Fprintf(out, "PNU       %s\n", resolved.PNU)
			fmt.Fprintf(out, "주소      %s\n", loc.AddressName)
			fmt.Fprintf(out, "법정동    %s\n", loc.LegalDistrictCode)
			fmt.Fprintf(out, "좌표      %.6f, %.6f\n", loc.Latitude, loc.Longitude)
			fmt.Fprintf(out, "산지      %t\n", loc.IsMountainLot)
			return nil
		},
	}
}

func describeGeocodeError(address string, err error) error {
	switch {
	case errors.Is(err, geocoder.ErrAddressNotFound):
		return fmt.Errorf("no parcel found for %q", address)
	case errors.Is(err, geocoder.ErrCredentialMissing):
		return errors.New("KAKAO_REST_API_KEY is not set")
	default:
		return err
	}
}

func writeWorkbook(path string, analysis *models.ParcelAnalysis) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteFactSheet(f, analysis); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printAnalysis(out io.Writer, analysis *models.ParcelAnalysis, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	case formatHTML:
		html, err := report.RenderHTML(analysis.Report.Text)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, html)
		return err
	}

	f := analysis.Facts
	fmt.Fprintf(out, "%s (PNU %s)\n", f.Address, f.PNU)
	fmt.Fprintf(out, "출처: 토지대장=%s 건축물대장=%s 토지특성=%s\n\n", f.Sources.Land, f.Sources.Building, f.Sources.Feature)
	fmt.Fprintln(out, analysis.Report.Text)
	return nil
}
