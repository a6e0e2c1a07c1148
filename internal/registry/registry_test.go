package registry

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
)

const (
	testPNU = "4157025123101630001"

	serviceKeyErrorXML = `<OpenAPI_ServiceResponse>
	<cmmMsgHeader>
		<errMsg>SERVICE ERROR</errMsg>
		<returnAuthMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</returnAuthMsg>
		<returnReasonCode>30</returnReasonCode>
	</cmmMsgHeader>
</OpenAPI_ServiceResponse>`

	noDataXML = `<?xml version="1.0" encoding="UTF-8"?>
<response><header><resultCode>03</resultCode><resultMsg>NODATA_ERROR</resultMsg></header><body/></response>`
)

// countingServer serves handler and counts the requests it receives.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var count int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func registryConfig(url, key string) config.RegistryConfig {
	return config.RegistryConfig{
		LandKey:     key,
		BuildingKey: key,
		LandURL:     url,
		BuildingURL: url,
		Timeout:     time.Second,
	}
}

func testLogger() *logger.Logger {
	return logger.New("test")
}

func TestCredentialVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Credential
	}{
		{
			name: "empty key",
			raw:  "",
			want: nil,
		},
		{
			name: "plain key collapses to one variant",
			raw:  "abcdef0123",
			want: []Credential{{Name: "decoded", Encoded: "abcdef0123"}},
		},
		{
			name: "encoding form collapses to one variant",
			raw:  "abc%2Bdef%2F%3D%3D",
			want: []Credential{{Name: "decoded", Encoded: "abc%2Bdef%2F%3D%3D"}},
		},
		{
			name: "decoding form tries escaped first then verbatim",
			raw:  "abc+def/==",
			want: []Credential{
				{Name: "decoded", Encoded: "abc%2Bdef%2F%3D%3D"},
				{Name: "raw", Encoded: "abc+def/=="},
			},
		},
		{
			name: "lowercase escapes keep the raw variant",
			raw:  "abc%2bdef",
			want: []Credential{
				{Name: "decoded", Encoded: "abc%2Bdef"},
				{Name: "raw", Encoded: "abc%2bdef"},
			},
		},
		{
			name: "invalid escape falls back to raw only",
			raw:  "abc%zz",
			want: []Credential{{Name: "raw", Encoded: "abc%zz"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CredentialVariants(tt.raw))
		})
	}
}

func TestSniffBody(t *testing.T) {
	tests := []struct {
		body string
		want bodyKind
	}{
		{`<?xml version="1.0"?><response/>`, bodyXML},
		{"\n\t <response/>", bodyXML},
		{"\ufeff<response/>", bodyXML},
		{`{"response":{}}`, bodyJSON},
		{`[1,2]`, bodyJSON},
		{"SERVICE ERROR", bodyUnknown},
		{"Unexpected errors", bodyUnknown},
		{"", bodyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffBody([]byte(tt.body)))
		})
	}
}

func TestClassifyLedgerBody(t *testing.T) {
	t.Run("xml records", func(t *testing.T) {
		records, outcome, _ := classifyLedgerBody([]byte(`<response>
			<header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header>
			<body><items>
				<item><a>1</a><b> two </b></item>
				<item><a>3</a></item>
			</items></body></response>`))

		require.Equal(t, outcomeRecords, outcome)
		require.Len(t, records, 2)
		assert.Equal(t, "two", records[0]["b"])
		assert.Equal(t, "3", records[1]["a"])
	})

	t.Run("xml success without items is no data", func(t *testing.T) {
		_, outcome, _ := classifyLedgerBody([]byte(`<response><header><resultCode>00</resultCode></header><body><items/></body></response>`))
		assert.Equal(t, outcomeNoData, outcome)
	})

	t.Run("xml no data code", func(t *testing.T) {
		_, outcome, _ := classifyLedgerBody([]byte(noDataXML))
		assert.Equal(t, outcomeNoData, outcome)
	})

	t.Run("xml service key envelope", func(t *testing.T) {
		_, outcome, detail := classifyLedgerBody([]byte(serviceKeyErrorXML))
		assert.Equal(t, outcomeRejected, outcome)
		assert.Contains(t, detail, "SERVICE_KEY_IS_NOT_REGISTERED_ERROR")
	})

	t.Run("xml other result code", func(t *testing.T) {
		_, outcome, _ := classifyLedgerBody([]byte(`<response><header><resultCode>22</resultCode><resultMsg>LIMITED</resultMsg></header></response>`))
		assert.Equal(t, outcomeRejected, outcome)
	})

	t.Run("json single item object", func(t *testing.T) {
		records, outcome, _ := classifyLedgerBody([]byte(`{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":{"totArea":"120.5"}}}}}`))
		require.Equal(t, outcomeRecords, outcome)
		assert.Equal(t, "120.5", records[0]["totArea"])
	})

	t.Run("json item array", func(t *testing.T) {
		records, outcome, _ := classifyLedgerBody([]byte(`{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":[{"n":1},{"n":2}]}}}}`))
		require.Equal(t, outcomeRecords, outcome)
		assert.Len(t, records, 2)
		assert.Equal(t, "2", records[1]["n"])
	})

	t.Run("xml items without header", func(t *testing.T) {
		records, outcome, _ := classifyLedgerBody([]byte(`<response><body><items><item><lndcgrCodeNm>대</lndcgrCodeNm></item></items></body></response>`))
		require.Equal(t, outcomeRecords, outcome)
		assert.Equal(t, "대", records[0]["lndcgrCodeNm"])
	})

	t.Run("json items without header", func(t *testing.T) {
		records, outcome, _ := classifyLedgerBody([]byte(`{"response":{"body":{"items":{"item":{"lndcgrCodeNm":"대"}}}}}`))
		require.Equal(t, outcomeRecords, outcome)
		assert.Equal(t, "대", records[0]["lndcgrCodeNm"])
	})

	t.Run("xml without header or items is rejected", func(t *testing.T) {
		_, outcome, _ := classifyLedgerBody([]byte(`<html><body>Bad Gateway</body></html>`))
		assert.Equal(t, outcomeRejected, outcome)
	})

	t.Run("json without header or items is rejected", func(t *testing.T) {
		_, outcome, _ := classifyLedgerBody([]byte(`{"message":"unauthorized"}`))
		assert.Equal(t, outcomeRejected, outcome)
	})

	t.Run("plain text is rejected", func(t *testing.T) {
		_, outcome, _ := classifyLedgerBody([]byte("SERVICE ERROR"))
		assert.Equal(t, outcomeRejected, outcome)
	})
}

func parcel(pnu string) models.ParcelNumber {
	return models.ParcelNumber(pnu)
}
