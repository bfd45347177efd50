package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultSocket is the qemu:///system daemon socket.
	DefaultSocket = "/var/run/libvirt/libvirt-sock"
	// DefaultTimeout bounds the socket dial.
	DefaultTimeout = 5 * time.Second
)

// Client wraps a go-libvirt connection to the local daemon.
type Client struct {
	libvirt *libvirt.Libvirt
	socket  string
}

// HostInfo is what the daemon reports about itself.
type HostInfo struct {
	Socket            string
	URI               string
	Hostname          string
	LibraryVersion    string
	HypervisorVersion string
}

// Connect establishes a connection to the local libvirt daemon.
// It returns a Client that must be closed via Close() when done.
//
// If socketPath is empty, defaults to DefaultSocket.
// If timeout is zero, defaults to DefaultTimeout.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}

	return &Client{libvirt: l, socket: socketPath}, nil
}

// ConnectWithContext is Connect with cancellation. A connection that
// completes after ctx is done is closed in the background.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	err := c.libvirt.Disconnect()
	c.libvirt = nil
	if err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("not connected to libvirt")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("failed to ping libvirt: %w", err)
	}
	return nil
}

// Info queries the daemon's hostname, URI and versions.
func (c *Client) Info() (*HostInfo, error) {
	if c.libvirt == nil {
		return nil, fmt.Errorf("not connected to libvirt")
	}

	libVersion, err := c.libvirt.ConnectGetLibVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get libvirt version: %w", err)
	}
	hvVersion, err := c.libvirt.ConnectGetVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get hypervisor version: %w", err)
	}
	hostname, err := c.libvirt.ConnectGetHostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get libvirt hostname: %w", err)
	}
	uri, err := c.libvirt.ConnectGetUri()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection URI: %w", err)
	}

	return &HostInfo{
		Socket:            c.socket,
		URI:               uri,
		Hostname:          hostname,
		LibraryVersion:    FormatVersion(libVersion),
		HypervisorVersion: FormatVersion(hvVersion),
	}, nil
}

// QueryHost connects, collects HostInfo and disconnects.
func QueryHost(ctx context.Context, socketPath string, timeout time.Duration) (*HostInfo, error) {
	c, err := ConnectWithContext(ctx, socketPath, timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	return c.Info()
}

// FormatVersion renders libvirt's packed version number
// (major*1000000 + minor*1000 + release) as "major.minor.release".
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1_000_000, (v/1_000)%1_000, v%1_000)
}
