package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/spacesedan/sentimen/internal/models"
)

type ValkeyOptions struct {
	Address  string
	Password string
	TLS      bool
	// TTL bounds how long a cached result lives. Zero keeps it forever.
	TTL time.Duration
}

// ValkeyClient is the shared result cache used when several service
// instances run side by side.
type ValkeyClient struct {
	Client valkey.Client
	opts   ValkeyOptions
	mu     sync.Mutex
}

func NewValkeyClient(opts ValkeyOptions) (*ValkeyClient, error) {
	client, err := connectValkey(opts)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", opts.Address))
	return &ValkeyClient{Client: client, opts: opts}, nil
}

func connectValkey(opts ValkeyOptions) (valkey.Client, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.TLS {
		clientOpts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

// Get returns the cached result for key. A missing key is a miss, not an
// error.
func (vc *ValkeyClient) Get(ctx context.Context, key string) (models.ReviewResult, bool, error) {
	var result models.ReviewResult

	c := vc.client()
	res := vc.DoWithRetry(ctx, c.B().Get().Key(key).Build(), 3)
	data, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return result, false, nil
	}
	if err != nil {
		return result, false, fmt.Errorf("[ValkeyClient] get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, false, fmt.Errorf("[ValkeyClient] corrupt cache entry %s: %w", key, err)
	}
	return result, true, nil
}

func (vc *ValkeyClient) Set(ctx context.Context, key string, result models.ReviewResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("[ValkeyClient] failed to marshal result: %w", err)
	}

	c := vc.client()
	var cmd valkey.Completed
	if seconds := int64(vc.opts.TTL / time.Second); seconds > 0 {
		cmd = c.B().Set().Key(key).Value(valkey.BinaryString(data)).ExSeconds(seconds).Build()
	} else {
		cmd = c.B().Set().Key(key).Value(valkey.BinaryString(data)).Build()
	}
	return vc.DoWithRetry(ctx, cmd, 3).Error()
}

func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.client().Do(ctx, completed)
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if isConnectionError(err) {
			vc.recreateClient()
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
