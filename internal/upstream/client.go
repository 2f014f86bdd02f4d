package upstream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hapi-server/hapifetch/internal/config"
)

// HeaderRequestID 随每个上游请求发送，便于在镜像与日志中关联。
const HeaderRequestID = "X-Request-ID"

const tracerName = "github.com/hapi-server/hapifetch/internal/upstream"

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Client 发起 HEAD/GET 请求并把非 2xx 响应转换为 *StatusError。
type Client struct {
	http      *http.Client
	logger    *logrus.Logger
	tracer    trace.Tracer
	userAgent string
}

// Response 是 GET 的结果，调用方负责关闭 Body。
type Response struct {
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
	RequestID     string
}

type options struct {
	rt     http.RoundTripper
	tracer trace.Tracer
}

// Option 调整 Client 的构建参数。
type Option func(*options)

// WithRoundTripper 替换底层 RoundTripper（限速仍会叠加在其外层）。
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.rt = rt
	}
}

// WithTracer 指定 otel tracer，默认使用全局 TracerProvider。
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// NewClient 基于配置构建共享 Client：超时、限速与 User-Agent 均来自 cfg。
func NewClient(cfg *config.Config, logger *logrus.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	timeout := 30 * time.Second
	if cfg != nil && cfg.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.UpstreamTimeout.DurationValue()
	}

	var transport http.RoundTripper = defaultTransport.Clone()
	if o.rt != nil {
		transport = o.rt
	}
	if cfg != nil && cfg.ThrottleEnabled() {
		rt, err := newThrottle(cfg.RequestsPerSecond, cfg.Burst, logger, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	c := &Client{
		http:   &http.Client{Timeout: timeout, Transport: transport},
		logger: logger,
		tracer: tracer,
	}
	if cfg != nil {
		c.userAgent = cfg.UserAgent
	}
	return c, nil
}

// Timeout 返回单次请求的超时时间。
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Head 发起 HEAD 请求并返回响应头。
func (c *Client) Head(ctx context.Context, rawURL string) (http.Header, error) {
	resp, _, err := c.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Header, nil
}

// Get 发起 GET 请求；成功时返回的 Body 需要由调用方关闭。
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, reqID, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	return &Response{
		Header:        resp.Header,
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		RequestID:     reqID,
	}, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, string, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, "", err
	}

	reqID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "upstream."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", u.String()),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, reqID, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set(HeaderRequestID, reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.WithFields(logrus.Fields{
		"action":     "upstream",
		"method":     method,
		"url":        u.String(),
		"request_id": reqID,
	}).Debug("sending upstream request")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, reqID, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		serr := &StatusError{
			URL:        rawURL,
			Method:     method,
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp),
		}
		if method != http.MethodHead {
			b, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
			if readErr == nil {
				serr.Body = string(b)
			}
		}
		span.SetStatus(codes.Error, serr.Error())
		return nil, reqID, serr
	}

	return resp, reqID, nil
}

// ParseURL 校验 URL：必须可解析，scheme 为 http/https 且带 host。
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// reasonPhrase 优先使用服务端返回的原因短语，缺省时回退到标准文本。
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
