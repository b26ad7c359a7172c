package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
)

var sendCmd = &cobra.Command{
	Use:   "send [method] <url>",
	Short: "Send one request and show every attempt",
	Long: `Send a single request. Redirects are followed and digest challenges
answered on the same logical request; every attempt is shown on the timeline.

Examples:
  hitwire send example.com/api/users
  hitwire send POST https://api.example.com/items -d '{"name":"x"}'
  hitwire send PUT https://api.example.com/upload -d @big.bin --type text
  hitwire send POST https://api.example.com/files -F title=report -F doc=@report.pdf
  hitwire send https://httpbin.org/digest-auth/auth/u/p -u u:p --digest
  hitwire send https://sts.amazonaws.com/?Action=GetCallerIdentity --aws-sigv4 sts:us-east-1
  hitwire send https://api.example.com/login -c token=body.access_token`,
	Args: cobra.RangeArgs(1, 2),
	RunE: sendCommand,
}

var (
	sendEngine   engineFlags
	sendFlags    sendOptions
	sendVerbose  int
	sendOutput   string
	sendNoBody   bool
	sendCaptures []string
)

// sendOptions describe the request built from the command line.
type sendOptions struct {
	headers   []string
	data      string
	bodyType  string
	form      []string
	multipart []string
	user      string
	digest    bool
	bearer    string
	awsSigV4  string
	awsKey    string
	awsSecret string
	awsToken  string
	awsProf   string
}

func init() {
	f := sendCmd.Flags()
	f.StringArrayVarP(&sendFlags.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	f.StringVarP(&sendFlags.data, "data", "d", "", "Request body; @file streams a file, @- streams stdin")
	f.StringVar(&sendFlags.bodyType, "type", "", "Body type: json, xml, text, sparql (default: json when the body parses as JSON)")
	f.StringArrayVar(&sendFlags.form, "form", nil, "URL-encoded form field name=value (repeatable)")
	f.StringArrayVarP(&sendFlags.multipart, "multipart", "F", nil, "Multipart field name=value or name=@file (repeatable)")
	f.StringVarP(&sendFlags.user, "user", "u", "", "Credentials user:password for basic or digest auth")
	f.BoolVar(&sendFlags.digest, "digest", false, "Use digest auth with --user")
	f.StringVar(&sendFlags.bearer, "bearer", getEnvString("HITWIRE_BEARER_TOKEN", ""), "Bearer token (env: HITWIRE_BEARER_TOKEN)")
	f.StringVar(&sendFlags.awsSigV4, "aws-sigv4", "", "Sign with AWS SigV4 as service:region")
	f.StringVar(&sendFlags.awsKey, "aws-access-key", getEnvString("AWS_ACCESS_KEY_ID", ""), "AWS access key id (env: AWS_ACCESS_KEY_ID)")
	f.StringVar(&sendFlags.awsSecret, "aws-secret-key", getEnvString("AWS_SECRET_ACCESS_KEY", ""), "AWS secret access key (env: AWS_SECRET_ACCESS_KEY)")
	f.StringVar(&sendFlags.awsToken, "aws-session-token", getEnvString("AWS_SESSION_TOKEN", ""), "AWS session token (env: AWS_SESSION_TOKEN)")
	f.StringVar(&sendFlags.awsProf, "aws-profile", getEnvString("AWS_PROFILE", ""), "Shared-config profile used when keys are not given (env: AWS_PROFILE)")

	f.StringArrayVarP(&sendCaptures, "capture", "c", nil, "Capture name=source.path from the response, e.g. id=body.data.id (repeatable)")
	f.CountVarP(&sendVerbose, "verbose", "v", "Show the full timeline and response headers")
	f.StringVarP(&sendOutput, "output", "o", getEnvString("HITWIRE_OUTPUT", "console"), "Output format: console, json (env: HITWIRE_OUTPUT)")
	f.BoolVar(&sendNoBody, "no-body", false, "Do not print the response body")

	sendEngine.register(sendCmd)
}

func sendCommand(cmd *cobra.Command, args []string) error {
	method, target := "GET", args[0]
	if len(args) == 2 {
		method, target = strings.ToUpper(args[0]), args[1]
	}

	req, err := sendFlags.build(method, target, cmd.InOrStdin())
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}
	if rc, ok := req.Body.Stream.(io.Closer); ok {
		defer rc.Close()
	}

	captures := make([]capture.Capture, 0, len(sendCaptures))
	for _, expr := range sendCaptures {
		c, err := capture.Parse(expr)
		if err != nil {
			return &exitError{code: ExitUsageError, err: err}
		}
		captures = append(captures, c)
	}

	formatter, err := newFormatter(sendOutput, cmd.OutOrStdout(), sendVerbose > 0, output.WithBody(!sendNoBody))
	if err != nil {
		return err
	}

	clientOpts, err := sendEngine.clientOptions(appConfig)
	if err != nil {
		return err
	}
	store, err := sendEngine.openHistory(appConfig)
	if err != nil {
		return err
	}
	cfg := &runner.Config{ClientOptions: clientOpts, Logger: appLogger}
	if store != nil {
		defer store.Close()
		cfg.Recorder = store
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := runner.NewRunner(cfg).Send(ctx, req, captures)
	formatter.FormatSend(res)
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(res.Duration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if res.Error != nil {
		return &exitError{code: exitCode(res.Error), err: errReported}
	}
	return nil
}

func (o *sendOptions) build(method, target string, stdin io.Reader) (*http.Request, error) {
	req := http.NewRequest(method, target)

	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q (use \"Name: value\")", h)
		}
		req.SetHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	bodies := 0
	for _, set := range []bool{o.data != "", len(o.form) > 0, len(o.multipart) > 0} {
		if set {
			bodies++
		}
	}
	if bodies > 1 {
		return nil, fmt.Errorf("--data, --form and --multipart are mutually exclusive")
	}

	switch {
	case o.data != "":
		if err := o.buildData(req, stdin); err != nil {
			return nil, err
		}
	case len(o.form) > 0:
		req.Body = http.Body{Mode: http.BodyFormURLEncoded}
		for _, field := range o.form {
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return nil, fmt.Errorf("invalid form field %q (use name=value)", field)
			}
			req.Body.Form = append(req.Body.Form, http.FormField{Name: name, Value: value, Enabled: true})
		}
	case len(o.multipart) > 0:
		req.Body = http.Body{Mode: http.BodyMultipartForm}
		for _, field := range o.multipart {
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return nil, fmt.Errorf("invalid multipart field %q (use name=value or name=@file)", field)
			}
			part := http.MultipartField{Type: http.MultipartText, Name: name, Value: value, Enabled: true}
			if path, isFile := strings.CutPrefix(value, "@"); isFile {
				abs, err := filepath.Abs(path)
				if err != nil {
					return nil, err
				}
				part = http.MultipartField{Type: http.MultipartFile, Name: name, Path: abs, Enabled: true}
			}
			req.Body.Multipart = append(req.Body.Multipart, part)
		}
	}

	auth, err := o.auth()
	if err != nil {
		return nil, err
	}
	req.SetAuth(auth)
	return req, nil
}

func (o *sendOptions) buildData(req *http.Request, stdin io.Reader) error {
	mode := http.BodyMode(o.bodyType)
	path, isFile := strings.CutPrefix(o.data, "@")

	if !isFile {
		if mode == "" {
			mode = http.BodyText
			if gjson.Valid(o.data) {
				mode = http.BodyJSON
			}
		}
		req.SetBody(mode, o.data)
		return nil
	}

	if mode == "" {
		mode = http.BodyText
		if strings.EqualFold(filepath.Ext(path), ".json") {
			mode = http.BodyJSON
		}
	}
	req.Body = http.Body{Mode: mode, Stream: stdin, StreamLength: -1}
	if path == "-" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	req.Body.Stream = f
	req.Body.StreamLength = info.Size()
	return nil
}

func (o *sendOptions) auth() (http.AuthConfig, error) {
	user, pass, _ := strings.Cut(o.user, ":")

	switch {
	case o.awsSigV4 != "":
		service, region, ok := strings.Cut(o.awsSigV4, ":")
		if !ok {
			return http.AuthConfig{}, fmt.Errorf("invalid --aws-sigv4 %q (use service:region)", o.awsSigV4)
		}
		return http.AuthConfig{Mode: http.AuthAWSV4, AWS: &http.AWSAuthCredentials{
			AccessKeyID:     o.awsKey,
			SecretAccessKey: o.awsSecret,
			SessionToken:    o.awsToken,
			Service:         service,
			Region:          region,
			ProfileName:     o.awsProf,
		}}, nil
	case o.digest:
		if o.user == "" {
			return http.AuthConfig{}, fmt.Errorf("--digest requires --user")
		}
		return http.AuthConfig{Mode: http.AuthDigest, Digest: &http.DigestAuthCredentials{Username: user, Password: pass}}, nil
	case o.user != "":
		return http.AuthConfig{Mode: http.AuthBasic, Basic: &http.BasicAuth{Username: user, Password: pass}}, nil
	case o.bearer != "":
		return http.AuthConfig{Mode: http.AuthBearer, Bearer: &http.BearerAuth{Token: o.bearer}}, nil
	}
	return http.AuthConfig{Mode: http.AuthNone}, nil
}
