package report

import (
	"context"
	"time"

	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
)

// FallbackText is returned in place of a generated report when the model
// cannot be reached or no credential is configured.
const FallbackText = "[자동 분석 불가] 보고서 생성 서비스를 사용할 수 없어 AI 분석을 제공하지 못했습니다. " +
	"함께 제공된 공공 데이터 팩트를 직접 검토하세요."

// Requester produces a report for an aggregated fact bundle.
type Requester interface {
	// RequestReport never fails: generator errors yield FallbackText with Fallback set.
	RequestReport(ctx context.Context, address string, bundle models.FactBundle) models.Report
}

type requester struct {
	generator Generator
	provider  string
	timeout   time.Duration
	log       *logger.Logger
}

// NewRequester wraps generator. A nil generator always yields the fallback report.
func NewRequester(generator Generator, provider string, timeout time.Duration, log *logger.Logger) Requester {
	return &requester{
		generator: generator,
		provider:  provider,
		timeout:   timeout,
		log:       log.WithComponent("report"),
	}
}

// NewRequesterFromConfig builds the generator for the configured provider.
// A missing key is not an error; the requester then always falls back.
func NewRequesterFromConfig(ctx context.Context, cfg config.ReportConfig, log *logger.Logger) Requester {
	var (
		gen Generator
		err error
	)

	switch cfg.Provider {
	case config.ReportProviderAnthropic:
		if cfg.AnthropicAPIKey != "" {
			gen, err = NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.Model, cfg.MaxTokens)
		}
	default:
		if cfg.GeminiAPIKey != "" {
			gen, err = NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.MaxTokens)
		}
	}

	if err != nil {
		log.Error("Failed to create report generator, reports will fall back", err, map[string]interface{}{
			"provider": cfg.Provider,
		})
		gen = nil
	} else if gen == nil {
		log.Warn("Report API key not configured, reports will fall back", map[string]interface{}{
			"provider": cfg.Provider,
		})
	}

	return NewRequester(gen, cfg.Provider, cfg.Timeout, log)
}

func (r *requester) RequestReport(ctx context.Context, address string, bundle models.FactBundle) models.Report {
	if r.generator == nil {
		return r.fallback()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := r.generator.Generate(ctx, BuildPrompt(address, bundle))
	if err != nil {
		r.log.Warn("Report generation failed, using fallback", map[string]interface{}{
			"provider":    r.provider,
			"pnu":         bundle.PNU.String(),
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return r.fallback()
	}

	r.log.Info("Report generated", map[string]interface{}{
		"provider":    r.provider,
		"pnu":         bundle.PNU.String(),
		"chars":       len([]rune(text)),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return models.Report{Provider: r.provider, Text: text}
}

func (r *requester) fallback() models.Report {
	return models.Report{Provider: r.provider, Text: FallbackText, Fallback: true}
}
