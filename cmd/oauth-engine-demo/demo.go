package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/instrumentation"
	"github.com/giantswarm/oauth-engine/security"
	"github.com/giantswarm/oauth-engine/server"
	"github.com/giantswarm/oauth-engine/storage"
	"github.com/giantswarm/oauth-engine/storage/actor"
	"github.com/giantswarm/oauth-engine/storage/memory"
)

const (
	pkceRequired = "required"
	pkceOptional = "optional"
	pkceOff      = "off"

	demoClientID    = "demo-client"
	demoRedirectURI = "https://client.example.com/callback"
	demoOwnerID     = "demo-owner"
	demoClientScope = "read write"
)

type demoConfig struct {
	pkce           string
	pkceMethod     string
	scope          storage.Scope
	bridged        bool
	metrics        bool
	audit          bool
	codeTTL        int64
	accessTokenTTL int64
	logLevel       slog.Level
}

func loadDemoConfig(v *viper.Viper) (demoConfig, error) {
	cfg := demoConfig{
		pkce:           strings.ToLower(strings.TrimSpace(v.GetString("pkce"))),
		pkceMethod:     strings.TrimSpace(v.GetString("pkce-method")),
		bridged:        v.GetBool("bridged"),
		metrics:        v.GetBool("metrics"),
		audit:          v.GetBool("audit"),
		codeTTL:        v.GetInt64("code-ttl"),
		accessTokenTTL: v.GetInt64("access-token-ttl"),
	}

	switch cfg.pkce {
	case pkceRequired, pkceOptional, pkceOff:
	default:
		return demoConfig{}, fmt.Errorf("invalid --pkce %q: want required, optional or off", cfg.pkce)
	}
	if cfg.pkceMethod != server.PKCEMethodS256 && cfg.pkceMethod != server.PKCEMethodPlain {
		return demoConfig{}, fmt.Errorf("invalid --pkce-method %q", cfg.pkceMethod)
	}

	scope, err := storage.ParseScope(v.GetString("scope"))
	if err != nil {
		return demoConfig{}, fmt.Errorf("invalid --scope: %w", err)
	}
	cfg.scope = scope

	if err := cfg.logLevel.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return demoConfig{}, fmt.Errorf("invalid --log-level: %w", err)
	}
	return cfg, nil
}

// primitives are the storage backends a demo run uses, possibly bridged
type primitives struct {
	registrar  storage.Registrar
	authorizer storage.Authorizer
	issuer     storage.Issuer
	stop       func()
}

func newPrimitives(cfg demoConfig, logger *slog.Logger, inst *instrumentation.Instrumentation) (*primitives, error) {
	registry := memory.NewRegistry()
	registry.SetLogger(logger)
	registry.SetInstrumentation(inst)
	client := storage.NewPublicClient(demoClientID, demoRedirectURI, storage.MustParseScope(demoClientScope))
	if err := registry.Register(client); err != nil {
		return nil, err
	}

	codes := memory.NewAuthMap(nil)
	codes.SetLogger(logger)
	codes.SetInstrumentation(inst)
	codes.SetClockSkewGracePeriod(server.DefaultClockSkewGracePeriod * time.Second)
	codes.StartCleanup(memory.DefaultCleanupInterval)

	tokens := memory.NewTokenMap(nil, &memory.TokenMapConfig{AccessTokenTTL: cfg.accessTokenTTL})
	tokens.SetLogger(logger)
	tokens.SetInstrumentation(inst)
	tokens.StartCleanup(memory.DefaultCleanupInterval)

	p := &primitives{registrar: registry, authorizer: codes, issuer: tokens}
	stops := []func(){codes.Stop, tokens.Stop}

	if cfg.bridged {
		opts := []actor.Option{actor.WithLogger(logger), actor.WithInstrumentation(inst)}
		r := actor.NewRegistrar(registry, opts...)
		a := actor.NewAuthorizer(codes, opts...)
		i := actor.NewIssuer(tokens, opts...)
		p.registrar, p.authorizer, p.issuer = r, a, i
		stops = append([]func(){r.Stop, a.Stop, i.Stop}, stops...)
	}

	p.stop = func() {
		for _, stop := range stops {
			stop()
		}
	}
	return p, nil
}

func runDemo(ctx context.Context, cfg demoConfig, logger *slog.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName:     "oauth-engine-demo",
		ServiceVersion:  version,
		Enabled:         cfg.metrics,
		MetricsExporter: instrumentation.MetricsExporterPrometheus,
	})
	if err != nil {
		return err
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	prims, err := newPrimitives(cfg, logger, inst)
	if err != nil {
		return err
	}
	defer prims.stop()

	addons, err := server.NewAddonList()
	if err != nil {
		return err
	}
	switch cfg.pkce {
	case pkceRequired:
		err = addons.Push(server.RequiredPKCE())
	case pkceOptional:
		err = addons.Push(server.OptionalPKCE())
	}
	if err != nil {
		return err
	}

	auditor := security.NewAuditor(logger, cfg.audit)
	limiter := security.NewRateLimiter(security.RateLimiterConfig{PerSecond: 10, Burst: 20, Logger: logger})
	defer limiter.Stop()
	auditor.SetRateLimiter(limiter)
	auditor.SetInstrumentation(inst)

	ep := &server.Endpoint{
		Registrar:       prims.registrar,
		Authorizer:      prims.authorizer,
		Issuer:          prims.issuer,
		Solicitor:       server.AutoApprove(demoOwnerID),
		Addons:          addons,
		Config:          &server.Config{AuthorizationCodeTTL: cfg.codeTTL},
		Logger:          logger,
		Auditor:         auditor,
		Instrumentation: inst,
	}

	verifier := oauth2.GenerateVerifier()
	challenge := verifier
	if cfg.pkceMethod == server.PKCEMethodS256 {
		challenge = oauth2.S256ChallengeFromVerifier(verifier)
	}

	code, err := authorize(ctx, ep, cfg, challenge)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "authorization: code issued (method %s)\n", cfg.pkceMethod)

	token, refresh, err := exchangeCode(ctx, ep, code, verifier)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "access_token: issued, refreshable=%t\n", refresh != "")

	if err := checkResource(ctx, ep, cfg.scope, token); err != nil {
		return err
	}
	fmt.Fprintf(out, "resource: bearer token accepted for scope %q\n", cfg.scope.String())

	if refresh != "" {
		if err := rotate(ctx, ep, refresh); err != nil {
			return err
		}
		fmt.Fprintln(out, "refresh: token pair rotated")
	}

	// Replaying the code must fail.
	if _, _, err := exchangeCode(ctx, ep, code, verifier); err == nil {
		return errors.New("authorization code was accepted twice")
	}
	fmt.Fprintln(out, "replay: second exchange rejected")

	if cfg.metrics {
		return writeMetrics(out, inst)
	}
	return nil
}

func authorize(ctx context.Context, ep *server.Endpoint, cfg demoConfig, challenge string) (string, error) {
	flow, err := server.PrepareAuthorization(ep)
	if err != nil {
		return "", err
	}
	query := url.Values{
		"response_type": {"code"},
		"client_id":     {demoClientID},
		"redirect_uri":  {demoRedirectURI},
		"scope":         {cfg.scope.String()},
		"state":         {"demo"},
	}
	if cfg.pkce != pkceOff {
		query.Set("code_challenge", challenge)
		query.Set("code_challenge_method", cfg.pkceMethod)
	}

	resp, err := flow.Execute(ctx, &server.Request{Query: query})
	if err != nil {
		return "", err
	}
	if code := resp.ErrorCode(); code != "" {
		return "", fmt.Errorf("authorization failed: %s", code)
	}
	return resp.Location.Query().Get("code"), nil
}

func exchangeCode(ctx context.Context, ep *server.Endpoint, code, verifier string) (string, string, error) {
	flow, err := server.PrepareAccessToken(ep)
	if err != nil {
		return "", "", err
	}
	body := url.Values{
		"grant_type":    {server.GrantTypeAuthorizationCode},
		"client_id":     {demoClientID},
		"code":          {code},
		"redirect_uri":  {demoRedirectURI},
		"code_verifier": {verifier},
	}
	resp, err := flow.Execute(ctx, &server.Request{Body: body})
	if err != nil {
		return "", "", err
	}
	return decodeTokens(resp)
}

func checkResource(ctx context.Context, ep *server.Endpoint, scope storage.Scope, token string) error {
	flow, err := server.PrepareResource(ep, scope)
	if err != nil {
		return err
	}
	resp, err := flow.Execute(ctx, &server.Request{Authorization: "Bearer " + token})
	if err != nil {
		return err
	}
	if resp.Status != server.StatusOK {
		return fmt.Errorf("resource rejected token: %s", resp.ErrorCode())
	}
	return nil
}

func rotate(ctx context.Context, ep *server.Endpoint, refresh string) error {
	flow, err := server.PrepareRefresh(ep)
	if err != nil {
		return err
	}
	body := url.Values{
		"grant_type":    {server.GrantTypeRefreshToken},
		"client_id":     {demoClientID},
		"refresh_token": {refresh},
	}
	resp, err := flow.Execute(ctx, &server.Request{Body: body})
	if err != nil {
		return err
	}
	_, _, err = decodeTokens(resp)
	return err
}

func decodeTokens(resp *server.Response) (string, string, error) {
	if resp.Status != server.StatusOK {
		return "", "", fmt.Errorf("token request failed: %s", resp.ErrorCode())
	}
	var tr oauth.TokenResponse
	if err := json.Unmarshal([]byte(resp.Body.Content), &tr); err != nil {
		return "", "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return tr.AccessToken, tr.RefreshToken, nil
}

func writeMetrics(out io.Writer, inst *instrumentation.Instrumentation) error {
	registry := inst.PrometheusRegistry()
	if registry == nil {
		return nil
	}
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
