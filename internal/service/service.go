// Package service implements the APIGatewayService.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dev.helix.gateway/internal/auth"
	"dev.helix.gateway/internal/connectors"
	"dev.helix.gateway/internal/models"
	"dev.helix.gateway/internal/promptconfig"
	"dev.helix.gateway/internal/streaming"
	"dev.helix.gateway/internal/usage"
	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
)

const (
	ErrorApplicationIDNotInContext = "application ID not found in context"
	ErrorNoActivePromptConfig      = "the application does not have an active prompt configuration"
	ErrorProviderCommunication     = "error communicating with AI provider"

	FinishReasonDone  = "done"
	FinishReasonError = "error"
)

// recordTimeout bounds how long persisting a usage record may take once the
// call itself has finished.
const recordTimeout = 5 * time.Second

// Server serves prompt configurations and prompt completions.
type Server struct {
	gatewayv1.UnimplementedAPIGatewayServiceServer

	repo       promptconfig.Repository
	connectors *connectors.Registry
	recorder   usage.Recorder
	streamer   *streaming.Streamer
	log        *logrus.Logger
}

// New creates a Server. A nil recorder discards usage records and a nil
// streamer forwards chunks unchanged.
func New(
	repo promptconfig.Repository,
	registry *connectors.Registry,
	recorder usage.Recorder,
	streamer *streaming.Streamer,
	log *logrus.Logger,
) *Server {
	if log == nil {
		log = logrus.New()
	}
	if recorder == nil {
		recorder = usage.NopRecorder{}
	}
	if streamer == nil {
		streamer = streaming.NewStreamer(streaming.DefaultStreamConfig(), log)
	}
	return &Server{
		repo:       repo,
		connectors: registry,
		recorder:   recorder,
		streamer:   streamer,
		log:        log,
	}
}

func applicationID(ctx context.Context) (string, error) {
	appID, ok := auth.ApplicationIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, ErrorApplicationIDNotInContext)
	}
	return appID, nil
}

// resolveConfig loads the requested configuration, or the application's
// default when configID is nil.
func (s *Server) resolveConfig(ctx context.Context, appID string, configID *string) (*models.PromptConfig, error) {
	cfg, err := promptconfig.Resolve(ctx, s.repo, appID, configID)
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, promptconfig.ErrInvalidID):
		return nil, status.Errorf(codes.InvalidArgument, "invalid prompt config id: %s", *configID)
	case errors.Is(err, promptconfig.ErrNotFound):
		return nil, status.Error(codes.NotFound, ErrorNoActivePromptConfig)
	default:
		s.log.WithError(err).WithField("application_id", appID).Error("Failed to retrieve prompt configuration")
		return nil, status.Error(codes.Internal, "failed to retrieve prompt configuration")
	}
}

func (s *Server) connector(vendor string) (connectors.Connector, error) {
	connector, err := s.connectors.Get(vendor)
	if err != nil {
		s.log.WithField("model_vendor", vendor).Warn("No connector registered for model vendor")
		return nil, status.Errorf(codes.Unimplemented, "unsupported model vendor: %s", vendor)
	}
	return connector, nil
}

// record persists a usage record. Failures are logged only.
func (s *Server) record(ctx context.Context, record *models.PromptRequestRecord) {
	if record == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.recorder.Record(ctx, record); err != nil {
		s.log.WithError(err).WithField("record_id", record.ID).Error("Failed to record prompt usage")
	}
}

// RequestPromptConfig returns the template variables the application's
// default configuration expects.
func (s *Server) RequestPromptConfig(
	ctx context.Context,
	request *gatewayv1.PromptConfigRequest,
) (*gatewayv1.PromptConfigResponse, error) {
	appID, err := applicationID(ctx)
	if err != nil {
		return nil, err
	}

	requested := request.GetApplicationId()
	if requested == "" {
		return nil, status.Error(codes.InvalidArgument, "application_id is required")
	}
	if requested != appID {
		return nil, status.Error(codes.PermissionDenied, "application_id does not match the authenticated application")
	}

	cfg, err := s.resolveConfig(ctx, appID, nil)
	if err != nil {
		return nil, err
	}

	return &gatewayv1.PromptConfigResponse{
		ExpectedPromptVariables: append([]string(nil), cfg.ExpectedTemplateVariables...),
	}, nil
}

// RequestPrompt performs a single completion.
func (s *Server) RequestPrompt(
	ctx context.Context,
	request *gatewayv1.PromptRequest,
) (*gatewayv1.PromptResponse, error) {
	appID, err := applicationID(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := s.resolveConfig(ctx, appID, request.PromptConfigId)
	if err != nil {
		return nil, err
	}

	if err := ValidateExpectedVariables(request.GetTemplateVariables(), cfg.ExpectedTemplateVariables); err != nil {
		return nil, err
	}

	connector, err := s.connector(cfg.ModelVendor)
	if err != nil {
		return nil, err
	}

	result := connector.RequestPrompt(ctx, cfg, request.GetTemplateVariables())
	s.record(ctx, result.RequestRecord)

	if result.Error != nil {
		s.log.WithError(result.Error).WithFields(logrus.Fields{
			"application_id": appID,
			"model_vendor":   cfg.ModelVendor,
		}).Error("Error in prompt request")
		return nil, status.Error(codes.Internal, ErrorProviderCommunication)
	}

	if result.Content == nil {
		s.log.WithField("application_id", appID).Error("Prompt response content is nil")
		return nil, status.Error(codes.Internal, "prompt response content is nil")
	}

	response := &gatewayv1.PromptResponse{Content: *result.Content}
	if record := result.RequestRecord; record != nil {
		response.RequestTokens = uint32(record.RequestTokens)
		response.ResponseTokens = uint32(record.ResponseTokens)
		response.RequestDuration = uint32(record.Duration().Milliseconds())
	}
	return response, nil
}

// RequestStreamingPrompt streams a completion.
func (s *Server) RequestStreamingPrompt(
	request *gatewayv1.PromptRequest,
	stream gatewayv1.APIGatewayService_RequestStreamingPromptServer,
) error {
	ctx := stream.Context()

	appID, err := applicationID(ctx)
	if err != nil {
		return err
	}

	cfg, err := s.resolveConfig(ctx, appID, request.PromptConfigId)
	if err != nil {
		return err
	}

	if err := ValidateExpectedVariables(request.GetTemplateVariables(), cfg.ExpectedTemplateVariables); err != nil {
		return err
	}

	connector, err := s.connector(cfg.ModelVendor)
	if err != nil {
		return err
	}

	// Stops the connector and the shaping stages once the stream returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	channel := make(chan models.PromptResult)
	go connector.RequestStream(ctx, cfg, request.GetTemplateVariables(), channel)

	shaped, tracker := s.streamer.Shape(ctx, channel, nil)
	err = s.streamFromChannel(ctx, shaped, stream)

	progress := tracker.GetProgress()
	s.log.WithFields(logrus.Fields{
		"application_id":      appID,
		"chunks":              progress.ChunksReceived,
		"characters":          progress.CharactersReceived,
		"first_chunk_latency": progress.FirstChunkLatency,
	}).Debug("Prompt stream finished")

	return err
}

// streamFromChannel sends every result to the client until the first
// message carrying a finish reason or until channel closes.
func (s *Server) streamFromChannel(
	ctx context.Context,
	channel <-chan models.PromptResult,
	stream gatewayv1.APIGatewayService_RequestStreamingPromptServer,
) error {
	for {
		var (
			result models.PromptResult
			ok     bool
		)
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case result, ok = <-channel:
			if !ok {
				return nil
			}
		}

		msg := createStreamMessage(result)
		sendErr := stream.Send(msg)

		// Recorded after the send, even a failed one.
		s.record(ctx, result.RequestRecord)

		if sendErr != nil {
			s.log.WithError(sendErr).Error("Failed to send message")
			return status.Error(codes.Internal, "failed to send message")
		}

		if result.Error != nil {
			s.log.WithError(result.Error).Error("Error in prompt stream")
			return status.Error(codes.Internal, ErrorProviderCommunication)
		}

		if msg.FinishReason != nil {
			return nil
		}
	}
}

// createStreamMessage converts a result into a stream message. Terminal
// results carry the finish reason and usage of the call.
func createStreamMessage(result models.PromptResult) *gatewayv1.StreamingPromptResponse {
	msg := &gatewayv1.StreamingPromptResponse{}
	if result.Error != nil {
		reason := FinishReasonError
		msg.FinishReason = &reason
	}
	if record := result.RequestRecord; record != nil {
		if msg.FinishReason == nil {
			reason := FinishReasonDone
			msg.FinishReason = &reason
		}
		requestTokens := uint32(record.RequestTokens)
		responseTokens := uint32(record.ResponseTokens)
		streamDuration := uint32(record.Duration().Milliseconds())
		msg.RequestTokens = &requestTokens
		msg.ResponseTokens = &responseTokens
		msg.StreamDuration = &streamDuration
	}
	if result.Content != nil {
		msg.Content = *result.Content
	}
	return msg
}
