package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/spf13/cobra"

	"github.com/tonup/tonup/profile"
	"github.com/tonup/tonup/ton"
	"github.com/tonup/tonup/ton/network"
)

const (
	modeUpload       = "upload"
	modeDownload     = "download"
	modeVerifyUpload = "verify_upload"
)

type options struct {
	mode     string
	bucket   string
	file     string
	location string
	out      string
	appAuth  bool
	trace    bool
	domain   string
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, ton.ErrVerificationMismatch) {
			// Reported, not a crash: the command ran to completion and the
			// outcome is a failed check.
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)

		var configErr *ton.ConfigError
		if errors.As(err, &configErr) {
			fmt.Fprint(os.Stderr, cmd.UsageString())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "tonup",
		Short:         "Upload and download blobs via the TON API",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "operation: upload, download or verify_upload (required)")
	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "target bucket name")
	cmd.Flags().StringVar(&opts.file, "file", "", "local file to upload")
	cmd.Flags().StringVar(&opts.location, "location", "", "stored object location (download mode)")
	cmd.Flags().StringVar(&opts.out, "out", "", "download destination (default: base name of --location)")
	cmd.Flags().BoolVar(&opts.appAuth, "app-auth", false, "use application-only bearer auth instead of user auth")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "enable wire-level logging")
	cmd.Flags().StringVar(&opts.domain, "domain", ton.DefaultDomain, "TON API domain")

	return cmd
}

func run(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := log.NewLogger()
	logger.EnableDebugLog(opts.trace)

	if err := validateOptions(opts); err != nil {
		return err
	}

	creds, err := profile.Load()
	if err != nil {
		return err
	}

	config := ton.DefaultConfig()
	config.Domain = opts.domain

	switch opts.mode {
	case modeUpload:
		return runUpload(ctx, opts, config, creds, logger)
	case modeDownload:
		return runDownload(ctx, opts, config, creds, logger)
	case modeVerifyUpload:
		return runVerifyUpload(ctx, opts, config, creds, logger)
	default:
		return &ton.ConfigError{Reason: fmt.Sprintf("invalid --mode %q, expected upload, download or verify_upload", opts.mode)}
	}
}

// validateOptions rejects bad invocations before any credential loading or
// network activity.
func validateOptions(opts options) error {
	if opts.mode == "" {
		return &ton.ConfigError{Reason: "--mode is required (upload, download or verify_upload)"}
	}

	switch opts.mode {
	case modeUpload, modeVerifyUpload:
		if opts.bucket == "" {
			return &ton.ConfigError{Reason: "--bucket is required for mode " + opts.mode}
		}
		if err := ton.ValidateBucketName(opts.bucket); err != nil {
			return err
		}
		if opts.file == "" {
			return &ton.ConfigError{Reason: "--file is required for mode " + opts.mode}
		}
		exists, err := pathutil.NewPathChecker().IsPathExists(opts.file)
		if err != nil {
			return err
		}
		if !exists {
			return &ton.ConfigError{Reason: fmt.Sprintf("file %s does not exist", opts.file)}
		}
		return nil
	case modeDownload:
		if opts.location == "" {
			return &ton.ConfigError{Reason: "--location is required for mode download"}
		}
		if !opts.appAuth {
			return &ton.ConfigError{Reason: "downloads use the bearer-auth-only endpoint, pass --app-auth"}
		}
		return nil
	default:
		return &ton.ConfigError{Reason: fmt.Sprintf("invalid --mode %q, expected upload, download or verify_upload", opts.mode)}
	}
}

func newSigner(ctx context.Context, opts options, creds profile.Credentials, logger log.Logger) (network.Signer, error) {
	if opts.appAuth {
		if err := creds.RequireAppAuth(); err != nil {
			return nil, &ton.ConfigError{Reason: err.Error()}
		}
		token, err := creds.BearerToken(ctx, "")
		if err != nil {
			return nil, err
		}
		return network.NewAppAuthSigner(token, logger), nil
	}

	if err := creds.RequireUserAuth(); err != nil {
		return nil, &ton.ConfigError{Reason: err.Error()}
	}
	return network.NewUserAuthSigner(creds.ConsumerKey, creds.ConsumerSecret, creds.Token, creds.Secret, logger), nil
}

func runUpload(ctx context.Context, opts options, config ton.Config, creds profile.Credentials, logger log.Logger) error {
	signer, err := newSigner(ctx, opts, creds, logger)
	if err != nil {
		return err
	}

	location, err := ton.NewUploader(config, signer, logger).Upload(ctx, opts.file, opts.bucket)
	if err != nil {
		return err
	}

	fmt.Println(location)
	return nil
}

func runDownload(ctx context.Context, opts options, config ton.Config, creds profile.Credentials, logger log.Logger) error {
	if err := creds.RequireAppAuth(); err != nil {
		return &ton.ConfigError{Reason: err.Error()}
	}
	token, err := creds.BearerToken(ctx, "")
	if err != nil {
		return err
	}

	dest := opts.out
	if dest == "" {
		dest = path.Base(opts.location)
	}

	return ton.NewDownloader(config, token, logger).Download(ctx, opts.location, dest)
}

func runVerifyUpload(ctx context.Context, opts options, config ton.Config, creds profile.Credentials, logger log.Logger) error {
	location, err := uploadForVerify(ctx, opts, config, creds, logger)
	if err != nil {
		return err
	}

	// The download endpoint is bearer-only regardless of how the upload was
	// authenticated, so the verify leg always runs on app auth.
	if err := creds.RequireAppAuth(); err != nil {
		return &ton.ConfigError{Reason: err.Error()}
	}
	token, err := creds.BearerToken(ctx, "")
	if err != nil {
		return err
	}

	verifier := ton.NewVerifier(config, ton.NewDownloader(config, token, logger), logger)
	match, err := verifier.Verify(ctx, location, opts.file)
	if err != nil {
		return err
	}
	if !match {
		logger.Errorf("Verification FAILED: %s differs from the uploaded copy at %s", opts.file, location)
		return ton.ErrVerificationMismatch
	}

	logger.Donef("Verification OK: %s matches the uploaded copy at %s", opts.file, location)
	fmt.Println(location)
	return nil
}

func uploadForVerify(ctx context.Context, opts options, config ton.Config, creds profile.Credentials, logger log.Logger) (string, error) {
	signer, err := newSigner(ctx, opts, creds, logger)
	if err != nil {
		return "", err
	}
	return ton.NewUploader(config, signer, logger).Upload(ctx, opts.file, opts.bucket)
}
