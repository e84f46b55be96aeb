package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Jigsaw-Code/outline-sdk/x/configurl"
)

// newRoundTripper builds the HTTP transport. A non-empty transport config
// string is parsed into a stream dialer so the client can reach the backend
// through whatever intermediary the deployment requires.
func newRoundTripper(transportConfig string) (http.RoundTripper, error) {
	if transportConfig == "" {
		return http.DefaultTransport, nil
	}

	dialer, err := configurl.NewDefaultConfigToDialer().NewStreamDialer(transportConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create dialer: %w", err)
	}

	dialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !strings.HasPrefix(network, "tcp") {
			return nil, fmt.Errorf("protocol not supported: %v", network)
		}
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		return dialer.DialStream(ctx, net.JoinHostPort(host, port))
	}

	return &http.Transport{DialContext: dialContext}, nil
}
