// Package connect provides the Connect RPC control service.
package connect

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/spinbox/internal/app/notification"
	"github.com/osa030/spinbox/internal/app/playback"
	"github.com/osa030/spinbox/internal/app/session"
	"github.com/osa030/spinbox/internal/domain/playlist"
	"github.com/osa030/spinbox/internal/domain/song"
)

// PlayerServiceName is the fully-qualified name of the PlayerService service.
const PlayerServiceName = "spinbox.v1.PlayerService"

// Procedure paths of the PlayerService RPCs.
const (
	PlayerServiceGetStatusProcedure       = "/spinbox.v1.PlayerService/GetStatus"
	PlayerServiceAddSongProcedure         = "/spinbox.v1.PlayerService/AddSong"
	PlayerServiceRemoveSongProcedure      = "/spinbox.v1.PlayerService/RemoveSong"
	PlayerServicePlaySongProcedure        = "/spinbox.v1.PlayerService/PlaySong"
	PlayerServiceTogglePlayPauseProcedure = "/spinbox.v1.PlayerService/TogglePlayPause"
	PlayerServiceToggleShuffleProcedure   = "/spinbox.v1.PlayerService/ToggleShuffle"
	PlayerServiceToggleLoopProcedure      = "/spinbox.v1.PlayerService/ToggleLoop"
	PlayerServiceWatchNoticesProcedure    = "/spinbox.v1.PlayerService/WatchNotices"
)

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	session *session.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(session *session.Manager) *PlayerService {
	return &PlayerService{session: session}
}

// NewPlayerServiceHandler builds an HTTP handler serving every PlayerService RPC.
// It returns the path on which to mount the handler.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PlayerServiceGetStatusProcedure, connect.NewUnaryHandler(PlayerServiceGetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(PlayerServiceAddSongProcedure, connect.NewUnaryHandler(PlayerServiceAddSongProcedure, svc.AddSong, opts...))
	mux.Handle(PlayerServiceRemoveSongProcedure, connect.NewUnaryHandler(PlayerServiceRemoveSongProcedure, svc.RemoveSong, opts...))
	mux.Handle(PlayerServicePlaySongProcedure, connect.NewUnaryHandler(PlayerServicePlaySongProcedure, svc.PlaySong, opts...))
	mux.Handle(PlayerServiceTogglePlayPauseProcedure, connect.NewUnaryHandler(PlayerServiceTogglePlayPauseProcedure, svc.TogglePlayPause, opts...))
	mux.Handle(PlayerServiceToggleShuffleProcedure, connect.NewUnaryHandler(PlayerServiceToggleShuffleProcedure, svc.ToggleShuffle, opts...))
	mux.Handle(PlayerServiceToggleLoopProcedure, connect.NewUnaryHandler(PlayerServiceToggleLoopProcedure, svc.ToggleLoop, opts...))
	mux.Handle(PlayerServiceWatchNoticesProcedure, connect.NewServerStreamHandler(PlayerServiceWatchNoticesProcedure, svc.WatchNotices, opts...))
	return "/" + PlayerServiceName + "/", mux
}

// GetStatus returns the current widget state.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return structResponse(s.session.Status())
}

// AddSong appends a URL to the playlist and returns the classified song.
func (s *PlayerService) AddSong(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	added, err := s.session.AddSong(req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}
	return structResponse(added)
}

// RemoveSong removes a playlist entry by index and returns it.
func (s *PlayerService) RemoveSong(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int32Value],
) (*connect.Response[structpb.Struct], error) {
	removed, err := s.session.RemoveSong(ctx, int(req.Msg.GetValue()))
	if err != nil {
		return nil, toConnectError(err)
	}
	return structResponse(removed)
}

// PlaySong plays a playlist entry by index.
func (s *PlayerService) PlaySong(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int32Value],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.session.PlaySong(ctx, int(req.Msg.GetValue())); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// TogglePlayPause presses the play/pause button and returns the resulting state.
func (s *PlayerService) TogglePlayPause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	if err := s.session.TogglePlayPause(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return structResponse(s.session.Status())
}

// ToggleShuffle flips shuffle mode.
func (s *PlayerService) ToggleShuffle(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.BoolValue], error) {
	return connect.NewResponse(wrapperspb.Bool(s.session.ToggleShuffle())), nil
}

// ToggleLoop flips loop mode.
func (s *PlayerService) ToggleLoop(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.BoolValue], error) {
	return connect.NewResponse(wrapperspb.Bool(s.session.ToggleLoop())), nil
}

// WatchNotices streams notices until the client goes away or the session ends.
func (s *PlayerService) WatchNotices(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	notifManager := s.session.GetNotificationManager()
	adapter := &noticeStreamAdapter{stream: stream}
	subscriptionID := notifManager.Subscribe(adapter)
	defer notifManager.Unsubscribe(subscriptionID)

	zlog.Debug().Msgf("notice watcher subscribed: subscription=%s", subscriptionID)

	// Wait for context cancellation or session end
	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}

	return nil
}

// noticeStreamAdapter adapts connect.ServerStream to notification.Stream.
type noticeStreamAdapter struct {
	stream *connect.ServerStream[structpb.Struct]
}

func (a *noticeStreamAdapter) Send(n *notification.Notice) error {
	msg, err := toStruct(n)
	if err != nil {
		return err
	}
	return a.stream.Send(msg)
}

func structResponse(v any) (*connect.Response[structpb.Struct], error) {
	msg, err := toStruct(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message")
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build struct")
	}
	return msg, nil
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, song.ErrInvalidURL), errors.Is(err, song.ErrInvalidYouTubeURL):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, playlist.ErrIndexOutOfRange):
		return connect.NewError(connect.CodeOutOfRange, err)
	case errors.Is(err, playback.ErrPlaylistEmpty), errors.Is(err, playback.ErrNoEngine):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, session.ErrClosed), errors.Is(err, playback.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
