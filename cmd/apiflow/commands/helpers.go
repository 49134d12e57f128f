package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/apiflow/internal/auth"
	"github.com/fivetwenty-io/apiflow/internal/constants"
	apihttp "github.com/fivetwenty-io/apiflow/internal/http"
	"github.com/fivetwenty-io/apiflow/internal/openapi"
	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// Output formats.
const (
	OutputFormatJSON = constants.FormatJSON
	OutputFormatYAML = constants.FormatYAML
)

// Common static errors used throughout the commands package.
var (
	ErrSpecRequired        = errors.New("OpenAPI document is required (use --spec or set spec in config)")
	ErrAPIRequired         = errors.New("API base URL is required (use --api or set api in config)")
	ErrEndpointNotInSpec   = errors.New("endpoint not found in the loaded document")
	ErrInvalidParamFormat  = errors.New("invalid parameter format, expected name=value")
	ErrCredentialsRequired = errors.New("email and password are required")
)

// loadSpec parses the configured OpenAPI document.
func loadSpec(ctx context.Context) (*apiflow.Spec, error) {
	specPath := viper.GetString("spec")
	if specPath == "" {
		return nil, ErrSpecRequired
	}

	spec, err := openapi.ParseFile(ctx, specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	return spec, nil
}

// newInvoker builds the HTTP invoker from the active configuration.
func newInvoker() (apiflow.Invoker, error) {
	baseURL := viper.GetString("api")
	if baseURL == "" {
		return nil, ErrAPIRequired
	}

	var tokenManager auth.TokenManager

	switch {
	case viper.GetString("token") != "":
		tokenManager = auth.NewStaticTokenManager(viper.GetString("token"))

	case viper.GetString("email") != "" && viper.GetString("password") != "":
		tokenManager = auth.NewPasswordTokenManager(&auth.PasswordConfig{
			TokenURL: tokenEndpoint(baseURL),
			Email:    viper.GetString("email"),
			Password: viper.GetString("password"),
		})
	}

	opts := []apihttp.Option{
		apihttp.WithLogger(NewCLILogger(viper.GetBool("verbose"))),
	}

	if viper.GetBool("verbose") {
		opts = append(opts, apihttp.WithDebug(true))
	}

	client := apihttp.NewClient(baseURL, tokenManager, opts...)

	return apihttp.NewInvoker(client), nil
}

func tokenEndpoint(baseURL string) string {
	if configured := viper.GetString("token_url"); configured != "" {
		return configured
	}

	return strings.TrimSuffix(baseURL, "/") + "/auth/token"
}

// contextStore builds the resolved-value store from configuration. The
// default is a JSON file next to the CLI config; a NATS bucket can be
// selected for shared sessions.
func contextStore() (apiflow.ContextStore, error) {
	builder := apiflow.NewStoreBuilder()

	if viper.GetString("nats_url") != "" {
		return builder.WithNATS(&apiflow.NATSStoreConfig{
			URL:         viper.GetString("nats_url"),
			Bucket:      natsBucket(),
			Credentials: viper.GetString("nats_credentials"),
		}).Build()
	}

	return builder.WithFile(contextFilePath()).Build()
}

func natsBucket() string {
	if bucket := viper.GetString("nats_bucket"); bucket != "" {
		return bucket
	}

	return "apiflow"
}

func contextFilePath() string {
	if path := viper.GetString("context_file"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "context.json"
	}

	return filepath.Join(home, ".apiflow", "context.json")
}

// loadSessionContext reads the persisted resolved values into a fresh
// engine Context.
func loadSessionContext(ctx context.Context, store apiflow.ContextStore) (*apiflow.Context, error) {
	values, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}

	session := apiflow.NewContext()
	session.Seed(values)

	return session, nil
}

// parseEndpointArg splits "METHOD /path" or defaults to GET.
func parseEndpointArg(arg string) apiflow.EndpointKey {
	parts := strings.SplitN(strings.TrimSpace(arg), " ", constants.KeyValueSplitParts)
	if len(parts) == constants.KeyValueSplitParts {
		return apiflow.EndpointKey{Method: strings.ToUpper(parts[0]), Path: parts[1]}
	}

	return apiflow.EndpointKey{Method: "GET", Path: parts[0]}
}

// parseParams converts name=value pairs into seed values. Numeric and
// boolean literals are converted so seeded values compare naturally
// with response values.
func parseParams(pairs []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(pairs))

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", constants.KeyValueSplitParts)
		if len(parts) != constants.KeyValueSplitParts || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParamFormat, pair)
		}

		values[parts[0]] = coerceValue(parts[1])
	}

	return values, nil
}

func coerceValue(raw string) interface{} {
	if number, err := strconv.ParseFloat(raw, 64); err == nil {
		return number
	}

	if boolean, err := strconv.ParseBool(raw); err == nil {
		return boolean
	}

	return raw
}

// StandardJSONRenderer writes data as indented JSON to stdout.
func StandardJSONRenderer(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer writes data as YAML to stdout.
func StandardYAMLRenderer(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding to YAML: %w", err)
	}

	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit-3] + "..."
}
