package sdk

import (
	"context"
	"net"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/network"
)

type recorder struct {
	mu       sync.Mutex
	methods  []string
	requests [][]byte
}

func startServer(t *testing.T, handler func(method string, req []byte) ([]byte, error)) (*bufconn.Listener, *recorder) {
	listener := bufconn.Listen(1024 * 1024)
	rec := &recorder{}
	server := grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
			method, _ := grpc.MethodFromServerStream(stream)
			var req []byte
			if err := stream.RecvMsg(&req); err != nil {
				return err
			}
			rec.mu.Lock()
			rec.methods = append(rec.methods, method)
			rec.requests = append(rec.requests, req)
			rec.mu.Unlock()

			resp, err := handler(method, req)
			if err != nil {
				return err
			}
			return stream.SendMsg(resp)
		}),
	)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		server.Stop()
		_ = listener.Close()
	})
	return listener, rec
}

func bufDialer(l *bufconn.Listener) DialOption {
	return WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return l.DialContext(ctx)
	})
}

func TestGrpcChannelInvoke(t *testing.T) {
	listener, rec := startServer(t, func(method string, req []byte) ([]byte, error) {
		resp := hapi.TransactionResponse{PrecheckCode: hapi.StatusBusy}
		return resp.Marshal(), nil
	})

	u, err := url.Parse("grpc://bufnet?insecure=true")
	require.NoError(t, err)
	dial := NewDialer(bufDialer(listener), WithoutTracing())
	ch, err := dial(network.Node{AccountID: entity.FromNum(3), URL: u})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	payload := hapi.MarshalTransaction([]byte{1, 2, 3})
	raw, err := ch.Invoke(t.Context(), hapi.MethodCryptoTransfer, payload)
	require.NoError(t, err)

	var resp hapi.TransactionResponse
	require.NoError(t, resp.Unmarshal(raw))
	assert.Equal(t, hapi.StatusBusy, resp.PrecheckCode)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{hapi.MethodCryptoTransfer}, rec.methods)
	assert.Equal(t, payload, rec.requests[0])
}

func TestGrpcChannelTransportError(t *testing.T) {
	listener, _ := startServer(t, func(string, []byte) ([]byte, error) {
		return nil, status.Error(codes.Unavailable, "node restarting")
	})

	u, err := url.Parse("grpc://bufnet:50211")
	require.NoError(t, err)
	ch, err := Dial(u, bufDialer(listener), WithInsecure(), WithRateLimit(100, 1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	_, err = ch.Invoke(t.Context(), hapi.MethodCryptoTransfer, []byte{1})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, codes.Unavailable, transportErr.Code)
	assert.Equal(t, "bufnet:50211", transportErr.Target)
}

func TestDialRequiresHost(t *testing.T) {
	_, err := Dial(&url.URL{Path: "nohost"})
	require.Error(t, err)
}

func TestIsInsecure(t *testing.T) {
	for raw, expected := range map[string]bool{
		"grpc://a:1":                false,
		"grpc://a:1?insecure=true":  true,
		"grpc://a:1?insecure=1":     true,
		"grpc://a:1?insecure=false": false,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, expected, isInsecure(u), raw)
	}
}
