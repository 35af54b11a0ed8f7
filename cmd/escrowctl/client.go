package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fastprodman/pvpescrow/internal/api"
	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/urfave/cli/v3"
)

var errRequestFailed = errors.New("request failed")

// client calls the escrow API as one identity.
type client struct {
	baseURL string
	token   string
	http    *http.Client
	out     io.Writer
}

func newClient(cmd *cli.Command) (*client, error) {
	caller, err := escrow.ParseIdentity(cmd.String("as"))
	if err != nil {
		return nil, fmt.Errorf("--as: %w", err)
	}

	secret := cmd.String("secret")
	if secret == "" {
		return nil, errors.New("--secret is required")
	}

	token, err := api.IssueToken(secret, cmd.String("issuer"), caller, cmd.Duration("token-ttl"))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &client{
		baseURL: strings.TrimRight(cmd.String("url"), "/"),
		token:   token,
		http:    &http.Client{Timeout: cmd.Duration("timeout")},
		out:     cmd.Root().Writer,
	}, nil
}

// do sends body as JSON and pretty-prints the response. Non-2xx statuses
// are returned as errors carrying the server's message.
func (c *client) do(ctx context.Context, method, path string, body any, header ...string) error {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %w: %d %s", method, path, errRequestFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(raw)
	}

	_, err = fmt.Fprintln(c.out, strings.TrimSpace(pretty.String()))

	return err
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
