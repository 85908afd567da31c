package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PlayerServiceClient is a client for the PlayerService RPC.
type PlayerServiceClient struct {
	getStatus       *connect.Client[emptypb.Empty, structpb.Struct]
	addSong         *connect.Client[wrapperspb.StringValue, structpb.Struct]
	removeSong      *connect.Client[wrapperspb.Int32Value, structpb.Struct]
	playSong        *connect.Client[wrapperspb.Int32Value, emptypb.Empty]
	togglePlayPause *connect.Client[emptypb.Empty, structpb.Struct]
	toggleShuffle   *connect.Client[emptypb.Empty, wrapperspb.BoolValue]
	toggleLoop      *connect.Client[emptypb.Empty, wrapperspb.BoolValue]
	watchNotices    *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewPlayerServiceClient creates a client for the server at baseURL.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &PlayerServiceClient{
		getStatus:       connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+PlayerServiceGetStatusProcedure, opts...),
		addSong:         connect.NewClient[wrapperspb.StringValue, structpb.Struct](httpClient, baseURL+PlayerServiceAddSongProcedure, opts...),
		removeSong:      connect.NewClient[wrapperspb.Int32Value, structpb.Struct](httpClient, baseURL+PlayerServiceRemoveSongProcedure, opts...),
		playSong:        connect.NewClient[wrapperspb.Int32Value, emptypb.Empty](httpClient, baseURL+PlayerServicePlaySongProcedure, opts...),
		togglePlayPause: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+PlayerServiceTogglePlayPauseProcedure, opts...),
		toggleShuffle:   connect.NewClient[emptypb.Empty, wrapperspb.BoolValue](httpClient, baseURL+PlayerServiceToggleShuffleProcedure, opts...),
		toggleLoop:      connect.NewClient[emptypb.Empty, wrapperspb.BoolValue](httpClient, baseURL+PlayerServiceToggleLoopProcedure, opts...),
		watchNotices:    connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+PlayerServiceWatchNoticesProcedure, opts...),
	}
}

// GetStatus calls spinbox.v1.PlayerService.GetStatus.
func (c *PlayerServiceClient) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.getStatus.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// AddSong calls spinbox.v1.PlayerService.AddSong.
func (c *PlayerServiceClient) AddSong(ctx context.Context, url string) (*structpb.Struct, error) {
	resp, err := c.addSong.CallUnary(ctx, connect.NewRequest(wrapperspb.String(url)))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// RemoveSong calls spinbox.v1.PlayerService.RemoveSong.
func (c *PlayerServiceClient) RemoveSong(ctx context.Context, index int32) (*structpb.Struct, error) {
	resp, err := c.removeSong.CallUnary(ctx, connect.NewRequest(wrapperspb.Int32(index)))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// PlaySong calls spinbox.v1.PlayerService.PlaySong.
func (c *PlayerServiceClient) PlaySong(ctx context.Context, index int32) error {
	_, err := c.playSong.CallUnary(ctx, connect.NewRequest(wrapperspb.Int32(index)))
	return err
}

// TogglePlayPause calls spinbox.v1.PlayerService.TogglePlayPause.
func (c *PlayerServiceClient) TogglePlayPause(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.togglePlayPause.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ToggleShuffle calls spinbox.v1.PlayerService.ToggleShuffle.
func (c *PlayerServiceClient) ToggleShuffle(ctx context.Context) (bool, error) {
	resp, err := c.toggleShuffle.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return false, err
	}
	return resp.Msg.GetValue(), nil
}

// ToggleLoop calls spinbox.v1.PlayerService.ToggleLoop.
func (c *PlayerServiceClient) ToggleLoop(ctx context.Context) (bool, error) {
	resp, err := c.toggleLoop.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return false, err
	}
	return resp.Msg.GetValue(), nil
}

// WatchNotices calls spinbox.v1.PlayerService.WatchNotices.
func (c *PlayerServiceClient) WatchNotices(ctx context.Context) (*connect.ServerStreamForClient[structpb.Struct], error) {
	return c.watchNotices.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
}
