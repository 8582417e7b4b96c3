package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/netmock/pkg/cli/internal/output"
	"github.com/getmockd/netmock/pkg/cli/internal/parse"
	"github.com/getmockd/netmock/pkg/config"
	"github.com/getmockd/netmock/pkg/intercept"
)

var (
	tryDefinitions []string
	tryHeaders     []string
	tryData        string
	tryInclude     bool
	tryAllow       string
	tryTimeout     time.Duration
)

// tryResult is the JSON form of a tried request.
type tryResult struct {
	Status      int                 `json:"status"`
	Headers     map[string][]string `json:"headers"`
	Body        string              `json:"body"`
	Interceptor string              `json:"interceptor,omitempty"`
	Pending     []string            `json:"pending,omitempty"`
}

var tryCmd = &cobra.Command{
	Use:   "try [flags] METHOD URL",
	Short: "Run one request through an engine loaded with definitions",
	Long: `Run one request through an in-process interception engine loaded with
definition files and print the response a test would receive.

The request never reaches the network unless net connect is enabled, either
with --allow or in the configuration. A request that no definition answers
exits with status 1.`,
	Example: `  netmock try -d 'mocks/*.yaml' GET http://api.example.test/users/1
  netmock try -d mocks/users.json -H 'Content-Type: application/json' --data '{"name":"Ada"}' POST http://api.example.test/users
  netmock try -d mocks/users.json -i GET http://api.example.test/users/1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(tryDefinitions) > 0 {
			cfg.Definitions = tryDefinitions
			cfg.SetSource("definitions", config.SourceFlag)
		}
		if allow := parse.SplitTrim(tryAllow, ","); len(allow) > 0 {
			cfg.NetConnect.Enabled = true
			cfg.NetConnect.Allow = allow
			cfg.SetSource("netConnect.allow", config.SourceFlag)
		}
		if len(cfg.Definitions) == 0 {
			return ErrNoDefinitions
		}

		req, err := newTryRequest(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		engine, err := intercept.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		if tryTimeout > 0 {
			ctx, cancel := context.WithTimeout(req.Context(), tryTimeout)
			defer cancel()
			req = req.WithContext(ctx)
		}

		res, err := engine.Transport().RoundTrip(req)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("reading response body: %w", err)}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			result := tryResult{
				Status:  res.StatusCode,
				Headers: res.Header,
				Body:    string(body),
				Pending: engine.PendingMocks(),
			}
			if entries := engine.Requests(nil); len(entries) > 0 {
				result.Interceptor = entries[0].InterceptorID
			}
			return output.JSON(out, result)
		}

		if tryInclude {
			writeResponseHead(out, res)
		}
		_, err = out.Write(body)
		return err
	},
}

func newTryRequest(ctx context.Context, method, url string) (*http.Request, error) {
	var body io.Reader
	if tryData != "" {
		body = strings.NewReader(tryData)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	pairs, err := parse.HeaderPairs(tryHeaders)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(pairs); i += 2 {
		if strings.EqualFold(pairs[i], "Host") {
			req.Host = pairs[i+1]
			continue
		}
		req.Header.Add(pairs[i], pairs[i+1])
	}
	return req, nil
}

// writeResponseHead prints the status line and headers sorted by name.
func writeResponseHead(w io.Writer, res *http.Response) {
	fmt.Fprintf(w, "%s %d %s\n", res.Proto, res.StatusCode, http.StatusText(res.StatusCode))
	names := make([]string, 0, len(res.Header))
	for name := range res.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range res.Header[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}

func init() {
	tryCmd.Flags().StringArrayVarP(&tryDefinitions, "definitions", "d", nil, "Definition file or glob (repeatable)")
	tryCmd.Flags().StringArrayVarP(&tryHeaders, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	tryCmd.Flags().StringVar(&tryData, "data", "", "Request body")
	tryCmd.Flags().BoolVarP(&tryInclude, "include", "i", false, "Print the status line and response headers")
	tryCmd.Flags().StringVar(&tryAllow, "allow", "", "Comma-separated hosts unmatched requests may reach")
	tryCmd.Flags().DurationVar(&tryTimeout, "timeout", 0, "Abort the request after this long")
	rootCmd.AddCommand(tryCmd)
}
