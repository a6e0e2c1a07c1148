package registry

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/tidwall/gjson"
)

const maxResponseSize = 4 << 20

// data.go.kr result codes
const (
	resultCodeOK     = "00"
	resultCodeNoData = "03"
)

// record is one ledger item flattened to element name -> text.
type record map[string]string

type bodyKind int

const (
	bodyUnknown bodyKind = iota
	bodyXML
	bodyJSON
)

// sniffBody classifies a response body by its first non-space byte.
func sniffBody(body []byte) bodyKind {
	trimmed := bytes.TrimLeft(body, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return bodyUnknown
	}
	switch trimmed[0] {
	case '<':
		return bodyXML
	case '{', '[':
		return bodyJSON
	default:
		return bodyUnknown
	}
}

type envelopeOutcome int

const (
	outcomeRecords envelopeOutcome = iota
	outcomeNoData
	outcomeRejected
)

// xmlEnvelope covers both the normal data.go.kr response and the
// OpenAPI_ServiceResponse error envelope returned for key problems.
type xmlEnvelope struct {
	XMLName xml.Name
	Header  struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []xmlItem `xml:"item"`
		} `xml:"items"`
	} `xml:"body"`
	CmmMsgHeader struct {
		ErrMsg           string `xml:"errMsg"`
		ReturnAuthMsg    string `xml:"returnAuthMsg"`
		ReturnReasonCode string `xml:"returnReasonCode"`
	} `xml:"cmmMsgHeader"`
}

type xmlItem struct {
	Fields []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

// classifyLedgerBody decodes a data.go.kr body into records.
// The returned string describes a rejection or no-data answer for logging.
func classifyLedgerBody(body []byte) ([]record, envelopeOutcome, string) {
	switch sniffBody(body) {
	case bodyXML:
		return classifyXML(body)
	case bodyJSON:
		return classifyJSON(body)
	default:
		return nil, outcomeRejected, "body is neither XML nor JSON"
	}
}

func classifyXML(body []byte) ([]record, envelopeOutcome, string) {
	var env xmlEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, outcomeRejected, "malformed XML: " + err.Error()
	}

	if env.XMLName.Local == "OpenAPI_ServiceResponse" {
		return nil, outcomeRejected, fmt.Sprintf("service error %s: %s",
			env.CmmMsgHeader.ReturnReasonCode, env.CmmMsgHeader.ReturnAuthMsg)
	}

	records := make([]record, 0, len(env.Body.Items.Item))
	for _, item := range env.Body.Items.Item {
		rec := make(record, len(item.Fields))
		for _, f := range item.Fields {
			rec[f.XMLName.Local] = strings.TrimSpace(f.Value)
		}
		records = append(records, rec)
	}

	return classifyRecords(records, strings.TrimSpace(env.Header.ResultCode), env.Header.ResultMsg)
}

// classifyRecords decides the outcome from the result code and the decoded items.
// Items without a result code count as a success; a body with neither is rejected.
func classifyRecords(records []record, code, msg string) ([]record, envelopeOutcome, string) {
	switch code {
	case resultCodeOK, "000":
	case resultCodeNoData:
		return nil, outcomeNoData, msg
	case "":
		if len(records) == 0 {
			return nil, outcomeRejected, "no result code and no items"
		}
	default:
		return nil, outcomeRejected, fmt.Sprintf("result code %q: %s", code, msg)
	}

	if len(records) == 0 {
		return nil, outcomeNoData, "no items"
	}
	return records, outcomeRecords, ""
}

func classifyJSON(body []byte) ([]record, envelopeOutcome, string) {
	if !gjson.ValidBytes(body) {
		return nil, outcomeRejected, "malformed JSON"
	}

	var records []record
	collect := func(item gjson.Result) {
		rec := record{}
		item.ForEach(func(key, value gjson.Result) bool {
			rec[key.String()] = strings.TrimSpace(value.String())
			return true
		})
		records = append(records, rec)
	}

	items := gjson.GetBytes(body, "response.body.items.item")
	switch {
	case items.IsArray():
		for _, item := range items.Array() {
			collect(item)
		}
	case items.IsObject():
		collect(items)
	}

	header := gjson.GetBytes(body, "response.header")
	return classifyRecords(records, strings.TrimSpace(header.Get("resultCode").String()), header.Get("resultMsg").String())
}

// ledgerClient runs the data.go.kr request loop shared by the land and building ledgers.
type ledgerClient struct {
	source  string
	baseURL string
	rawKey  string
	http    *http.Client
	log     *logger.Logger
}

// fetchRecords tries each credential variant in order. The first attempt that
// is structurally successful (records or no-data) wins. A rejected attempt
// moves on to the next variant; a transport failure ends the loop.
//
// HTTP 500 is how these services answer a PNU they hold nothing for, so it is
// reported as no record without retrying.
func (c *ledgerClient) fetchRecords(ctx context.Context, params url.Values) ([]record, error) {
	variants := CredentialVariants(c.rawKey)
	if len(variants) == 0 {
		return nil, ErrCredentialMissing
	}

	var lastRejection string
	for _, cred := range variants {
		reqURL := c.baseURL + "?" + params.Encode() + "&serviceKey=" + cred.Encoded

		status, body, err := httpGet(ctx, c.http, reqURL)
		if err != nil {
			c.log.Warn("Registry request failed", map[string]interface{}{
				"credential": cred.Name,
				"error":      err.Error(),
			})
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, c.source, err)
		}

		if status == http.StatusInternalServerError {
			c.log.Info("Registry returned 500, treating as no record", map[string]interface{}{
				"credential": cred.Name,
			})
			return nil, ErrNoRecord
		}

		if status < 200 || status > 299 {
			lastRejection = fmt.Sprintf("status %d", status)
			c.log.Debug("Registry rejected credential variant", map[string]interface{}{
				"credential": cred.Name,
				"status":     status,
			})
			continue
		}

		records, outcome, detail := classifyLedgerBody(body)
		switch outcome {
		case outcomeRecords:
			c.log.Debug("Registry returned records", map[string]interface{}{
				"credential": cred.Name,
				"records":    len(records),
			})
			return records, nil
		case outcomeNoData:
			c.log.Info("Registry has no record", map[string]interface{}{
				"credential": cred.Name,
				"detail":     detail,
			})
			return nil, ErrNoRecord
		default:
			lastRejection = detail
			c.log.Debug("Registry rejected credential variant", map[string]interface{}{
				"credential": cred.Name,
				"detail":     detail,
			})
		}
	}

	c.log.Warn("Registry rejected every credential variant", map[string]interface{}{
		"variants": len(variants),
		"detail":   lastRejection,
	})
	return nil, fmt.Errorf("%w: %s: %s", ErrSourceRejected, c.source, lastRejection)
}

func httpGet(ctx context.Context, client *http.Client, reqURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// resultFor maps a fetchRecords error to the matching Result status.
func resultFor[T any](err error) Result[T] {
	if errors.Is(err, ErrNoRecord) {
		return empty[T](err)
	}
	return failure[T](err)
}
