// Package csvplugin implements the CSV content plugin: the protocol verbs and
// the gRPC server that hosts them.
package csvplugin

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/generators"
	"github.com/nupi-ai/contentplugins/internal/logging"
	"github.com/nupi-ai/contentplugins/internal/matchers"
	"github.com/nupi-ai/contentplugins/internal/matchexpr"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

const missingConfigMessage = "No config provided to match/generate CSV content"

// Service implements pluginpb.PactPluginServer for CSV content. It holds no
// per-call state, so verbs may run concurrently.
type Service struct {
	pluginpb.UnimplementedPactPluginServer

	logger     *zap.Logger
	rules      *matchers.Registry
	generators *generators.Registry
	parser     *matchexpr.Parser
	metrics    *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRules replaces the rule registry used to decode wire rules and parse expressions.
func WithRules(r *matchers.Registry) Option {
	return func(s *Service) { s.rules = r }
}

// WithGenerators replaces the generator registry.
func WithGenerators(r *generators.Registry) Option {
	return func(s *Service) { s.generators = r }
}

// WithMetrics records mismatch and generation counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a service backed by the default registries.
func NewService(opts ...Option) *Service {
	s := &Service{
		rules:      matchers.Default(),
		generators: generators.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).Named("csv")
	s.parser = &matchexpr.Parser{Rules: s.rules, Generators: s.generators}
	return s
}

// Catalogue returns the fixed capability set of the plugin.
func Catalogue() []*pluginpb.CatalogueEntry {
	values := func() map[string]string {
		return map[string]string{constants.CatalogueContentTypesAttribute: constants.CSVContentTypes}
	}
	return []*pluginpb.CatalogueEntry{
		{Type: pluginpb.EntryContentMatcher, Key: constants.CSVCatalogueKey, Values: values()},
		{Type: pluginpb.EntryContentGenerator, Key: constants.CSVCatalogueKey, Values: values()},
	}
}

func (s *Service) InitPlugin(_ context.Context, req *pluginpb.InitPluginRequest) (*pluginpb.InitPluginResponse, error) {
	s.logger.Debug("init request",
		zap.String("implementation", req.Implementation),
		zap.String("version", req.Version))
	return &pluginpb.InitPluginResponse{Catalogue: Catalogue()}, nil
}

func (s *Service) UpdateCatalogue(_ context.Context, req *pluginpb.Catalogue) (*pluginpb.Void, error) {
	s.logger.Debug("update catalogue request, ignoring", zap.Int("entries", len(req.Catalogue)))
	return &pluginpb.Void{}, nil
}

func (s *Service) ConfigureContents(_ context.Context, req *pluginpb.ConfigureContentsRequest) (*pluginpb.ConfigureContentsResponse, error) {
	s.logger.Debug("configure contents request", zap.String("content_type", req.ContentType))

	var config *Config
	if req.ContentsConfig != nil && req.ContentsConfig.Struct != nil {
		config = &Config{Fields: req.ContentsConfig.Struct}
	}
	resp, err := s.Configure(config)
	if errors.Is(err, ErrMissingConfig) {
		return nil, status.Error(codes.Aborted, missingConfigMessage)
	}
	if err != nil {
		return nil, status.Errorf(codes.Aborted, "Invalid column definition: %v", err)
	}
	return resp, nil
}

func (s *Service) CompareContents(_ context.Context, req *pluginpb.CompareContentsRequest) (*pluginpb.CompareContentsResponse, error) {
	s.logger.Debug("compare contents request",
		zap.Bool("allow_unexpected_keys", req.AllowUnexpectedKeys),
		zap.Int("rules", len(req.Rules)))

	resp, err := s.Compare(req.Expected, req.Actual, req.Rules, req.AllowUnexpectedKeys)
	if err != nil {
		return nil, status.Errorf(codes.Aborted, "Failed to compare CSV contents: %v", err)
	}
	return resp, nil
}

func (s *Service) GenerateContent(_ context.Context, req *pluginpb.GenerateContentRequest) (*pluginpb.GenerateContentResponse, error) {
	s.logger.Debug("generate content request", zap.Int("generators", len(req.Generators)))

	if req.Contents == nil {
		return nil, status.Error(codes.InvalidArgument, "Failed to generate CSV contents: no contents supplied")
	}
	body, err := s.Generate(req.Contents, req.Generators, nil)
	if err != nil {
		return nil, status.Errorf(codes.Aborted, "Failed to generate CSV contents: %v", err)
	}
	return &pluginpb.GenerateContentResponse{Contents: body}, nil
}
