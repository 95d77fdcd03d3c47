package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octophi/ingestor/internal/resilience"
)

// FTPOptions configures FTP retrieval.
type FTPOptions struct {
	Timeout time.Duration
}

// FetchFTP downloads an ftp:// URL to a temp file and returns the local path
// plus a cleanup func the caller must invoke when done with the file.
// Transient failures (timeouts, 4xx FTP replies) are retried with backoff.
func FetchFTP(ctx context.Context, rawURL string, opts FTPOptions) (string, func(), error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	host, remotePath, user, pass, err := parseFTPURL(rawURL)
	if err != nil {
		return "", nil, err
	}

	path, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) (string, error) {
		return fetchOnce(ctx, host, remotePath, user, pass, opts.Timeout)
	})
	if err != nil {
		return "", nil, err
	}

	cleanup := func() { os.Remove(path) } //nolint:errcheck
	return path, cleanup, nil
}

func fetchOnce(ctx context.Context, host, remotePath, user, pass string, timeout time.Duration) (string, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", remotePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", eris.Wrapf(err, "ftp: dial %s", host)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(user, pass); err != nil {
		return "", eris.Wrap(err, "ftp: login")
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return "", eris.Wrapf(err, "ftp: retrieve %s", remotePath)
	}
	defer resp.Close() //nolint:errcheck

	tmp, err := os.CreateTemp("", "octophi-ftp-*"+filepath.Ext(remotePath))
	if err != nil {
		return "", eris.Wrap(err, "ftp: create temp file")
	}

	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "ftp: download")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "ftp: close temp file")
	}

	return tmp.Name(), nil
}

func parseFTPURL(rawURL string) (host, path, user, pass string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	if u.Path == "" {
		return "", "", "", "", eris.New("ftp: empty path in url")
	}

	user, pass = "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	return host, u.Path, user, pass, nil
}
