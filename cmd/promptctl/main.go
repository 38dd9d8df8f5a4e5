// Command promptctl calls a prompt gateway from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"dev.helix.gateway/internal/auth"
	"dev.helix.gateway/internal/compression/brotli"
	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
	"dev.helix.gateway/pkg/client"
)

const usageText = `promptctl calls a prompt gateway.

Usage:
  promptctl <command> [flags]

Commands:
  token    mint a bearer token for an application
  config   show the variables an application's prompt expects
  prompt   run a prompt and print the completion
  stream   run a prompt and print chunks as they arrive

Common flags:
  -addr string      gateway address (env GATEWAY_ADDR, default localhost:50051)
  -token string     bearer token (env GATEWAY_TOKEN)
  -timeout duration call timeout (default 60s)
  -compress         use brotli compression
  -json             print raw protobuf JSON

Prompt flags:
  -var name=value   template variable, repeatable
  -config-id id     prompt config to use instead of the default
`

// varsFlag collects repeated -var name=value flags.
type varsFlag map[string]string

func (v varsFlag) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+v[k])
	}
	return strings.Join(parts, ",")
}

func (v varsFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	v[name] = val
	return nil
}

type commonFlags struct {
	addr     string
	token    string
	timeout  time.Duration
	compress bool
	json     bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	addr := os.Getenv("GATEWAY_ADDR")
	if addr == "" {
		addr = "localhost:50051"
	}
	fs.StringVar(&c.addr, "addr", addr, "gateway address")
	fs.StringVar(&c.token, "token", os.Getenv("GATEWAY_TOKEN"), "bearer token")
	fs.DurationVar(&c.timeout, "timeout", 60*time.Second, "call timeout")
	fs.BoolVar(&c.compress, "compress", false, "use brotli compression")
	fs.BoolVar(&c.json, "json", false, "print raw protobuf JSON")
}

func (c *commonFlags) dial() (*client.Client, error) {
	var opts []client.Option
	if c.token != "" {
		opts = append(opts, client.WithBearerToken(c.token))
	}
	if c.compress {
		opts = append(opts, client.WithCompression(brotli.Name))
	}
	return client.Dial(c.addr, opts...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "promptctl:", err)
		}
		os.Exit(1)
	}
}

// run executes one command. cc, when set, replaces dialing.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, cc grpc.ClientConnInterface) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		fmt.Fprint(stdout, usageText)
		return nil
	}

	command, args := args[0], args[1:]
	switch command {
	case "token":
		return runToken(args, stdout, stderr)
	case "config", "prompt", "stream":
		return runCall(ctx, command, args, stdout, stderr, cc)
	default:
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runToken(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret")
	issuer := fs.String("issuer", "helix-gateway", "token issuer")
	appID := fs.String("app", "", "application ID")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *appID == "" {
		return errors.New("-app is required")
	}

	tokens, err := auth.NewTokenIssuer(*secret, *issuer)
	if err != nil {
		return err
	}
	token, err := tokens.Create(*appID, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func runCall(ctx context.Context, command string, args []string, stdout, stderr io.Writer, cc grpc.ClientConnInterface) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common commonFlags
	common.register(fs)
	vars := varsFlag{}
	var appID, configID string
	if command == "config" {
		fs.StringVar(&appID, "app", "", "application ID")
	} else {
		fs.Var(vars, "var", "template variable name=value, repeatable")
		fs.StringVar(&configID, "config-id", "", "prompt config ID")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	var gateway *client.Client
	if cc != nil {
		gateway = client.New(cc)
	} else {
		var err error
		if gateway, err = common.dial(); err != nil {
			return err
		}
		defer gateway.Close()
	}

	ctx, cancel := context.WithTimeout(ctx, common.timeout)
	defer cancel()

	req := &gatewayv1.PromptRequest{TemplateVariables: vars}
	if configID != "" {
		req.PromptConfigId = proto.String(configID)
	}

	switch command {
	case "config":
		if appID == "" {
			return errors.New("-app is required")
		}
		resp, err := gateway.RequestPromptConfig(ctx, &gatewayv1.PromptConfigRequest{ApplicationId: appID})
		if err != nil {
			return err
		}
		if common.json {
			return printJSON(stdout, resp)
		}
		for _, name := range resp.GetExpectedPromptVariables() {
			fmt.Fprintln(stdout, name)
		}
		return nil

	case "prompt":
		resp, err := gateway.RequestPrompt(ctx, req)
		if err != nil {
			return err
		}
		if common.json {
			return printJSON(stdout, resp)
		}
		fmt.Fprintln(stdout, resp.GetContent())
		fmt.Fprintf(stderr, "tokens: %d in, %d out, %dms\n",
			resp.GetRequestTokens(), resp.GetResponseTokens(), resp.GetRequestDuration())
		return nil

	default:
		return runStream(ctx, gateway, req, common.json, stdout, stderr)
	}
}

func runStream(
	ctx context.Context,
	gateway *client.Client,
	req *gatewayv1.PromptRequest,
	asJSON bool,
	stdout, stderr io.Writer,
) error {
	reader, err := gateway.RequestStreamingPrompt(ctx, req)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if asJSON {
			if err := printJSON(stdout, chunk); err != nil {
				return err
			}
			continue
		}
		fmt.Fprint(stdout, chunk.GetContent())
		if chunk.FinishReason != nil {
			fmt.Fprintln(stdout)
			fmt.Fprintf(stderr, "finish: %s, tokens: %d in, %d out, %dms\n",
				chunk.GetFinishReason(), chunk.GetRequestTokens(), chunk.GetResponseTokens(), chunk.GetStreamDuration())
		}
	}
}

func printJSON(w io.Writer, msg proto.Message) error {
	data, err := protojson.MarshalOptions{Multiline: true, EmitUnpopulated: true}.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
