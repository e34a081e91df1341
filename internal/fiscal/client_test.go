package fiscal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayStub is a scriptable fake of the fiscal gateway.
type gatewayStub struct {
	t *testing.T

	tokens          []string // returned by successive /getToken calls
	tokenCalls      atomic.Int32
	registerCalls   atomic.Int32
	registerRespond func(w http.ResponseWriter, r *http.Request)
	reportRespond   func(w http.ResponseWriter, r *http.Request)
	lastRawBody     []byte
}

func (g *gatewayStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/getToken", func(w http.ResponseWriter, r *http.Request) {
		n := int(g.tokenCalls.Add(1)) - 1
		var creds map[string]string
		require.NoError(g.t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(g.t, "login", creds["login"])
		assert.Equal(g.t, "pass", creds["pass"])

		token := ""
		if n < len(g.tokens) {
			token = g.tokens[n]
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/shop-1/sell", func(w http.ResponseWriter, r *http.Request) {
		g.registerCalls.Add(1)
		g.lastRawBody, _ = io.ReadAll(r.Body)
		g.registerRespond(w, r)
	})
	mux.HandleFunc("/shop-1/report/", func(w http.ResponseWriter, r *http.Request) {
		g.reportRespond(w, r)
	})
	return mux
}

func newTestClient(t *testing.T, stub *gatewayStub, store TokenStore) (*Client, *httptest.Server) {
	stub.t = t
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, testSettings(), store)
	return client, srv
}

func registeredJSON(uuid string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"uuid": uuid, "status": "wait"})
	}
}

func TestRegisterCheckFetchesTokenLazily(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok-1"}, registerRespond: registeredJSON("u-1")}
	store := NewMemoryTokenStore()
	client, _ := newTestClient(t, stub, store)

	out, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{ExternalID: "check_x"})
	require.NoError(t, err)

	assert.Equal(t, StateRegistered, out.State)
	assert.Equal(t, "u-1", out.UUID)
	assert.Equal(t, int32(1), stub.tokenCalls.Load())
	assert.Equal(t, int32(1), stub.registerCalls.Load())

	stored, _ := store.Get(context.Background(), tokenKey("shop-1"))
	assert.Equal(t, "tok-1", stored, "exchanged token must be persisted")
}

func TestRegisterCheckRefreshesOnceOn401(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"fresh"}}
	stub.registerRespond = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		registeredJSON("u-2")(w, r)
	}
	store := NewMemoryTokenStore()
	require.NoError(t, store.Set(context.Background(), tokenKey("shop-1"), "stale"))
	client, _ := newTestClient(t, stub, store)

	out, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{})
	require.NoError(t, err)

	assert.Equal(t, StateRegistered, out.State)
	assert.Equal(t, int32(2), stub.registerCalls.Load(), "exactly one resend after refresh")
	assert.Equal(t, int32(1), stub.tokenCalls.Load())

	stored, _ := store.Get(context.Background(), tokenKey("shop-1"))
	assert.Equal(t, "fresh", stored)
}

func TestRegisterCheckSecond401IsAuthError(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"t1", "t2"}}
	stub.registerRespond = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	store := NewMemoryTokenStore()
	require.NoError(t, store.Set(context.Background(), tokenKey("shop-1"), "seed"))
	client, _ := newTestClient(t, stub, store)

	_, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{})

	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, int32(2), stub.registerCalls.Load(), "no third attempt after the refreshed token is rejected")
}

func TestRegisterCheckFailedTokenExchange(t *testing.T) {
	stub := &gatewayStub{tokens: []string{""}, registerRespond: registeredJSON("never")}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	_, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{})

	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, int32(0), stub.registerCalls.Load())
}

func TestRegisterCheckSuccessWithoutUUIDFails(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}}
	stub.registerRespond = func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "wait"})
	}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	out, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.NotEmpty(t, out.ErrorText)
}

func TestRegisterCheckGatewayRejection(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}}
	stub.registerRespond = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":32,"text":"invalid inn"}}`))
	}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	out, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, "32", out.ErrorCode)
	assert.Equal(t, "invalid inn", out.ErrorText)
}

func TestRegisterCheckMalformedBody(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}}
	stub.registerRespond = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway melted</html>"))
	}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	out, err := client.RegisterCheck(context.Background(), OperationSell, &CheckQuery{})
	require.NoError(t, err, "a malformed body is downgraded, not surfaced")
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, genericRegistrationError, out.ErrorText)
}

func TestCheckStatusWait(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}}
	stub.reportRespond = func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"uuid": "u-3", "status": "wait"})
	}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	out, err := client.CheckStatus(context.Background(), "u-3")
	require.NoError(t, err)
	assert.Equal(t, StatePending, out.State)
	assert.Equal(t, "u-3", out.UUID)
}

func TestCheckStatusDone(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}}
	stub.reportRespond = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"uuid": "u-4",
			"status": "done",
			"payload": {
				"receipt_datetime": "07.03.2024 15:10:00",
				"ecr_registration_number": "0000111122223333",
				"fiscal_document_attribute": 1234567890,
				"fiscal_document_number": 120,
				"fiscal_receipt_number": 12,
				"fn_number": "9999000011112222",
				"shift_number": 5,
				"total": 150.5
			}
		}`))
	}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	out, err := client.CheckStatus(context.Background(), "u-4")
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	require.NotNil(t, out.Attributes)
	attrs := out.Attributes
	assert.Equal(t, "0000111122223333", attrs.RegistrationNumber)
	assert.Equal(t, int64(1234567890), attrs.FiscalDocumentAttribute)
	assert.Equal(t, int64(120), attrs.FiscalDocumentNumber)
	assert.Equal(t, int64(12), attrs.FiscalReceiptNumber)
	assert.Equal(t, "9999000011112222", attrs.FNNumber)
	assert.Equal(t, int64(5), attrs.ShiftNumber)
	assert.InDelta(t, 150.5, attrs.Total, 0.001)
	assert.Equal(t, time.Date(2024, 3, 7, 15, 10, 0, 0, time.Local), attrs.ReceiptAt)
}

func TestCheckStatusErrorText(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}}
	stub.reportRespond = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"uuid":"u-5","status":"fail","error":{"code":"1","text":"shift closed"}}`))
	}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	out, err := client.CheckStatus(context.Background(), "u-5")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, "shift closed", out.ErrorText)
	assert.Equal(t, "u-5", out.UUID)
}

func TestRegisterCheckSendsPrettyUnescapedJSON(t *testing.T) {
	stub := &gatewayStub{tokens: []string{"tok"}, registerRespond: registeredJSON("u-6")}
	client, _ := newTestClient(t, stub, NewMemoryTokenStore())

	name := `Товар & "кавычки"`
	query := &CheckQuery{
		ExternalID: "check_q",
		Receipt: &ReceiptBlock{
			Items: []Position{{Name: name, VAT: VATBlock{Type: strptr(VATNone)}}},
		},
	}
	_, err := client.RegisterCheck(context.Background(), OperationSell, query)
	require.NoError(t, err)

	body := string(stub.lastRawBody)
	assert.Contains(t, body, name, "unicode and HTML characters stay unescaped")
	assert.Contains(t, body, "\n    ", "body is indented")
}

func TestNewClientUsesProvidedHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Second}

	a := NewClient(ClientConfig{BaseURL: "http://gw", HTTPClient: shared}, testSettings(), NewMemoryTokenStore())
	b := NewClient(ClientConfig{BaseURL: "http://gw", HTTPClient: shared}, testSettings(), NewMemoryTokenStore())

	assert.Same(t, shared, a.http, "a provided client must not be replaced")
	assert.Same(t, a.http, b.http, "clients share one connection pool")
}
