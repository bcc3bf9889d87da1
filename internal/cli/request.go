package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dqx0.com/go/wireclient/httpx"
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Send a GET request and print the body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, "GET", args[0])
	},
}

var requestCmd = &cobra.Command{
	Use:   "request URL",
	Short: "Send an arbitrary request",
	Long: `Send an arbitrary HTTP/1.1 request over a fresh connection.

Examples:
  wirecurl request -X DELETE http://127.0.0.1:8080/items/1
  wirecurl request -X PUT -H 'x-token: abc' -d @body.json http://127.0.0.1:8080/items/1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		return runRequest(cmd, method, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, requestCmd} {
		c.Flags().StringArrayP("header", "H", nil, "request header 'name: value' (repeatable)")
		c.Flags().BoolP("include", "i", false, "print the status line and response headers")
	}
	requestCmd.Flags().StringP("method", "X", "GET", "request method")
	requestCmd.Flags().StringP("data", "d", "", "request body, or @file to read it from a file")
}

func runRequest(cmd *cobra.Command, method, url string) error {
	rawHeaders, _ := cmd.Flags().GetStringArray("header")
	include, _ := cmd.Flags().GetBool("include")
	h, err := parseHeaders(rawHeaders)
	if err != nil {
		return err
	}
	var body []byte
	if cmd.Flags().Lookup("data") != nil {
		data, _ := cmd.Flags().GetString("data")
		if body, err = loadBody(data); err != nil {
			return err
		}
	}

	c := GetConfig()
	client := &httpx.Client{Transport: c.Transport(newLogger(cmd), nil)}
	res := client.Execute(context.Background(), method, url, h, body)
	if res.StatusCode == -1 {
		return fmt.Errorf("request failed: %w", res.Err)
	}
	out := cmd.OutOrStdout()
	if include {
		fmt.Fprintf(out, "HTTP/1.1 %d %s\n", res.StatusCode, res.Reason)
		res.Header.Range(func(name, value string) bool {
			fmt.Fprintf(out, "%s: %s\n", name, value)
			return true
		})
		fmt.Fprintln(out)
	}
	if _, err := out.Write(res.Body); err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("body truncated after %d bytes: %w", len(res.Body), res.Err)
	}
	return nil
}

// parseHeaders turns "name: value" strings into a Header, keeping order.
func parseHeaders(raw []string) (httpx.Header, error) {
	var h httpx.Header
	for _, r := range raw {
		name, value, ok := strings.Cut(r, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return httpx.Header{}, fmt.Errorf("invalid header %q, want 'name: value'", r)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

func loadBody(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	if !strings.HasPrefix(data, "@") {
		return []byte(data), nil
	}
	name := data[1:]
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read body file: %w", err)
	}
	return b, nil
}
