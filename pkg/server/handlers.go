package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/provider"
	"github.com/go-go-golems/kraken-agui/pkg/run"
	"github.com/go-go-golems/kraken-agui/pkg/stream"
)

func (s *Server) handleRun(c *gin.Context) {
	st := s.app.Settings.Stream
	tagged := st.Tagged || stream.WantsTagged(c.GetHeader("Accept"))

	stream.SetHeaders(c.Writer.Header())
	c.Status(http.StatusOK)

	em := stream.NewEmitter(c.Writer,
		stream.WithTagged(tagged),
		stream.WithValidation(st.Validate),
		stream.WithBuffer(st.Buffer),
		stream.WithFrameObserver(s.metrics.ObserveFrame),
	)

	ctx := events.WithEventSinks(c.Request.Context(), s.sinks...)
	coordinator := s.app.Coordinator

	s.metrics.RunsInFlight.Inc()
	defer s.metrics.RunsInFlight.Dec()

	in, err := decodeInput(c.Request.Body)
	if err != nil {
		log.Warn().Err(err).Msg("rejecting run request")
		coordinator.Reject(ctx, &run.Input{}, err, em)
	} else {
		coordinator.Run(ctx, in, em)
	}

	if err := em.Close(); err != nil {
		log.Debug().Err(err).Msg("client went away during the run")
	}
	if v := em.Violation(); v != nil {
		log.Error().Err(v).Msg("run produced an out-of-order event")
	}
}

// decodeInput reads a run request. An empty body is an empty conversation.
func decodeInput(body io.Reader) (*run.Input, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Errorf("could not read request body: %s", err)
	}
	in := &run.Input{}
	if strings.TrimSpace(string(b)) == "" {
		return in, nil
	}
	if err := json.Unmarshal(b, in); err != nil {
		return nil, errors.Errorf("Invalid request body: %s", err)
	}
	return in, nil
}

func (s *Server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Registry.ListTools())
}

type toolResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleCallTool(c *gin.Context) {
	name := c.Param("name")

	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.respondTool(c, name, http.StatusBadRequest, toolResponse{Error: "could not read request body"})
		return
	}
	args := tools.NormalizeArguments(b)
	if !json.Valid(args) {
		s.respondTool(c, name, http.StatusBadRequest, toolResponse{Error: "Invalid JSON body"})
		return
	}

	call := tools.ToolCall{ID: "direct_" + name, Name: name, Arguments: args}
	res, err := s.executor.ExecuteToolCall(c.Request.Context(), call, s.app.Registry)
	if err != nil {
		s.respondTool(c, name, statusFor(err), toolResponse{Error: run.ErrorMessage(err)})
		return
	}
	if res.Failed() {
		s.respondTool(c, name, statusFor(res.Err), toolResponse{Error: run.ErrorMessage(res.Err)})
		return
	}
	s.respondTool(c, name, http.StatusOK, toolResponse{Success: true, Data: res.Result})
}

func (s *Server) respondTool(c *gin.Context, name string, code int, body toolResponse) {
	label := name
	if !s.app.Registry.HasTool(name) {
		label = "unknown"
	}
	s.metrics.DirectCallTotal.WithLabelValues(label, strconv.Itoa(code)).Inc()
	c.JSON(code, body)
}

func statusFor(err error) int {
	var te *tools.ToolError
	switch {
	case errors.As(err, &te):
		switch te.Type {
		case tools.ToolErrorNotFound:
			return http.StatusNotFound
		case tools.ToolErrorValidation:
			return http.StatusBadRequest
		case tools.ToolErrorNotAllowed:
			return http.StatusForbidden
		case tools.ToolErrorTimeout:
			return http.StatusGatewayTimeout
		}
	case provider.IsProviderError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tools":  tools.Names(s.app.Registry),
		"mode":   s.app.Coordinator.Mode(),
	})
}
