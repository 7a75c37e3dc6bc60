package peers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ugorji/go/codec"
)

// DaemonRegistry queries the local chain daemon over JSON-RPC for the list of
// registered nodes.
type DaemonRegistry struct {
	addr     string
	user     string
	password string
	client   *http.Client
}

// NewDaemonRegistry creates a DaemonRegistry for the daemon RPC endpoint at
// addr (host:port or a full http URL). Empty credentials disable basic auth.
func NewDaemonRegistry(addr, user, password string, timeout time.Duration) *DaemonRegistry {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &DaemonRegistry{
		addr:     addr,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `codec:"jsonrpc"`
	ID      string        `codec:"id"`
	Method  string        `codec:"method"`
	Params  []interface{} `codec:"params"`
}

type rpcError struct {
	Code    int    `codec:"code"`
	Message string `codec:"message"`
}

type listResponse struct {
	Result []NodeRecord `codec:"result"`
	Error  *rpcError    `codec:"error"`
}

// Query implements the Registry interface by calling listzelnodes with the
// filter as its only parameter.
func (d *DaemonRegistry) Query(ctx context.Context, pubKeyFilter string) ([]NodeRecord, error) {
	params := []interface{}{}
	if pubKeyFilter != "" {
		params = append(params, pubKeyFilter)
	}

	var body []byte
	if err := codec.NewEncoderBytes(&body, new(codec.JsonHandle)).Encode(rpcRequest{
		JSONRPC: "1.0",
		ID:      "fluxnet",
		Method:  "listzelnodes",
		Params:  params,
	}); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, d.addr, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	if d.user != "" || d.password != "" {
		req.SetBasicAuth(d.user, d.password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listzelnodes: %w", err)
	}
	defer resp.Body.Close()

	var out listResponse
	if err := codec.NewDecoder(resp.Body, new(codec.JsonHandle)).Decode(&out); err != nil {
		return nil, fmt.Errorf("listzelnodes: status %d: %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("listzelnodes: rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil {
		return []NodeRecord{}, nil
	}

	return out.Result, nil
}
