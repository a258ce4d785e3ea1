package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single snapshot request.
const DefaultTimeout = 5 * time.Second

// Model selects which dialects are tried when fetching a snapshot.
type Model int

const (
	ModelAuto Model = iota
	ModelHikvision
	ModelDahua
)

var ErrInvalidModel = errors.New("invalid camera model")

// ParseModel accepts hikvision, dahua and auto. An empty string means auto.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModelAuto, nil
	case "hikvision":
		return ModelHikvision, nil
	case "dahua":
		return ModelDahua, nil
	}
	return ModelAuto, fmt.Errorf("%w: %q (want hikvision, dahua or auto)", ErrInvalidModel, s)
}

func (m Model) String() string {
	switch m {
	case ModelHikvision:
		return "hikvision"
	case ModelDahua:
		return "dahua"
	default:
		return "auto"
	}
}

// Dialects returns the dialects to try for m, in order.
func (m Model) Dialects() []Dialect {
	switch m {
	case ModelHikvision:
		return []Dialect{Hikvision}
	case ModelDahua:
		return []Dialect{Dahua}
	default:
		return []Dialect{Hikvision, Dahua}
	}
}

// Dialect is a vendor specific snapshot endpoint.
type Dialect int

const (
	Hikvision Dialect = iota
	Dahua
)

func (d Dialect) String() string {
	if d == Dahua {
		return "dahua"
	}
	return "hikvision"
}

func (d Dialect) path() string {
	if d == Dahua {
		return "/cgi-bin/snapshot.cgi"
	}
	return "/ISAPI/Streaming/channels/101/picture"
}

// URL builds the snapshot URL of ep for this dialect.
func (d Dialect) URL(ep Endpoint) string {
	return "http://" + net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port)) + d.path()
}

// Endpoint is where a camera lives and how to authenticate against it.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

type Outcome int

const (
	Success Outcome = iota
	ConnectionFailed
	HTTPError
	Unexpected
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ConnectionFailed:
		return "connection failed"
	case HTTPError:
		return "http error"
	default:
		return "unexpected failure"
	}
}

// Result is the outcome of one snapshot request.
type Result struct {
	Outcome    Outcome
	Dialect    Dialect
	Image      []byte
	StatusCode int
	Err        error
}

// OK reports whether the result carries an image.
func (r Result) OK() bool {
	return r.Outcome == Success && len(r.Image) > 0
}

func (r Result) String() string {
	switch r.Outcome {
	case Success:
		return fmt.Sprintf("%s: %d bytes", r.Dialect, len(r.Image))
	case HTTPError:
		return fmt.Sprintf("%s: HTTP %d", r.Dialect, r.StatusCode)
	default:
		if r.Err != nil {
			return fmt.Sprintf("%s: %s: %v", r.Dialect, r.Outcome, r.Err)
		}
		return fmt.Sprintf("%s: %s", r.Dialect, r.Outcome)
	}
}

// Fetcher performs a single snapshot request.
type Fetcher interface {
	Fetch(d Dialect, ep Endpoint) Result
}

// Client fetches snapshots over HTTP with digest authentication.
// It never retries.
type Client struct {
	Timeout time.Duration
	// Transport overrides the default HTTP transport when set.
	Transport http.RoundTripper
	Log       *zap.SugaredLogger
}

func NewClient(log *zap.SugaredLogger) *Client {
	return &Client{Timeout: DefaultTimeout, Log: log}
}

func (c *Client) Fetch(d Dialect, ep Endpoint) (res Result) {
	res.Dialect = d
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: Unexpected, Dialect: d, Err: fmt.Errorf("panic: %v", r)}
			c.Log.Errorw("unexpected failure while getting picture",
				"host", ep.Host, "port", ep.Port, zap.Error(res.Err))
		}
	}()

	url := d.URL(ep)
	c.Log.Infow("connecting to camera", "dialect", d.String(), "url", url)

	rc := resty.New().SetTimeout(c.Timeout).SetLogger(c.Log)
	base := c.Transport
	if base == nil {
		base = rc.GetClient().Transport
	}
	// SetDigestAuth wraps whatever transport is set at call time.
	rc.SetTransport(digestChallengeOnly{next: base})
	rc.SetDigestAuth(ep.Username, ep.Password)

	resp, err := rc.R().Get(url)
	if err != nil {
		res.Err = err
		if isUnauthorized(err) {
			res.Outcome = HTTPError
			res.StatusCode = http.StatusUnauthorized
			c.Log.Warnw("could not get picture, HTTP error",
				"code", res.StatusCode, "host", ep.Host, "port", ep.Port, "error", err.Error())
			return res
		}
		if isConnectionError(err) {
			res.Outcome = ConnectionFailed
			c.Log.Warnw("could not get picture, connection failed",
				"host", ep.Host, "port", ep.Port, "error", err.Error())
			return res
		}
		res.Outcome = Unexpected
		c.Log.Errorw("unexpected failure while getting picture",
			"host", ep.Host, "port", ep.Port, zap.Error(err))
		return res
	}

	if resp.StatusCode() != http.StatusOK {
		res.Outcome = HTTPError
		res.StatusCode = resp.StatusCode()
		c.Log.Warnw("could not get picture, HTTP error",
			"code", res.StatusCode, "host", ep.Host, "port", ep.Port)
		return res
	}

	body := resp.Body()
	if len(body) == 0 {
		res.Outcome = Unexpected
		res.StatusCode = http.StatusOK
		res.Err = errors.New("empty response body")
		c.Log.Warnw("could not get picture, empty response body",
			"host", ep.Host, "port", ep.Port)
		return res
	}

	res.Outcome = Success
	res.StatusCode = http.StatusOK
	res.Image = body
	return res
}

// errNoDigestChallenge is returned for a 401 that offers no digest challenge,
// such as Basic auth or a bare 401.
type errNoDigestChallenge struct {
	challenge string
}

func (e *errNoDigestChallenge) Error() string {
	if e.challenge == "" {
		return "401 Unauthorized without challenge"
	}
	return fmt.Sprintf("401 Unauthorized, unsupported challenge %q", e.challenge)
}

// digestChallengeOnly fails 401 responses that the digest transport cannot
// answer, so they surface as an error without a response.
type digestChallengeOnly struct {
	next http.RoundTripper
}

func (t digestChallengeOnly) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	chal := strings.TrimSpace(resp.Header.Get("WWW-Authenticate"))
	if strings.HasPrefix(strings.ToLower(chal), "digest ") {
		return resp, nil
	}
	resp.Body.Close()
	return nil, &errNoDigestChallenge{challenge: chal}
}

func isUnauthorized(err error) bool {
	var noDigest *errNoDigestChallenge
	return errors.As(err, &noDigest) ||
		errors.Is(err, resty.ErrDigestBadChallenge) ||
		errors.Is(err, resty.ErrDigestCharset) ||
		errors.Is(err, resty.ErrDigestAlgNotSupported) ||
		errors.Is(err, resty.ErrDigestQopNotSupported) ||
		errors.Is(err, resty.ErrDigestNoQop)
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.As(err, &netErr) && netErr.Timeout():
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return false
}

// Retrieve tries the dialects of m in order and returns the first result
// carrying an image, or the last failure.
func Retrieve(f Fetcher, m Model, ep Endpoint) Result {
	var res Result
	for _, d := range m.Dialects() {
		res = f.Fetch(d, ep)
		if res.OK() {
			return res
		}
	}
	return res
}
