package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"tabshot/internal/api"
	"tabshot/internal/capture"
	"tabshot/internal/daemon"
	"tabshot/internal/logging"
	"tabshot/internal/logs"
	"tabshot/internal/services"
	"tabshot/internal/store"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Tabshot", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun tabshot stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Status = "ok"
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	*resp = status
	return nil
}

func (s *service) SubmitBatch(req SubmitBatchRequest, resp *SubmitBatchResponse) error {
	id, err := s.daemon.SubmitBatch(s.ctx, req.URLs, captureOptions(req.ForceActive, req.SettleDelayMS))
	if err != nil {
		return err
	}
	resp.BatchID = id
	resp.Total = len(req.URLs)
	s.log().Info("capture batch submitted via IPC",
		logging.String(logging.FieldEventType, "batch_submit"),
		logging.BatchID(id),
		logging.Int("urls", len(req.URLs)))
	return nil
}

func (s *service) Capture(req CaptureRequest, resp *CaptureResponse) error {
	rec, err := s.daemon.CaptureOne(s.ctx, req.URL, captureOptions(req.ForceActive, req.SettleDelayMS))
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("capture of %s produced no record", req.URL)
	}
	resp.Item = api.FromRecord(rec)
	return nil
}

func (s *service) Cancel(_ CancelRequest, resp *CancelResponse) error {
	resp.Cancelled = s.daemon.CancelBatch()
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	statuses := make([]store.Status, 0, len(req.Statuses))
	for _, value := range req.Statuses {
		parsed, ok := store.ParseStatus(value)
		if !ok {
			return fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	records, err := s.daemon.ListThumbnails(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = api.FromRecords(records)
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	rec, err := s.daemon.Describe(s.ctx, req.Ref)
	if err != nil {
		return err
	}
	resp.Item = api.FromRecord(rec)
	return nil
}

func (s *service) Image(req ImageRequest, resp *ImageResponse) error {
	data, mime, err := s.daemon.Image(s.ctx, req.Ref)
	if err != nil {
		return err
	}
	resp.Data = data
	resp.MimeType = mime
	return nil
}

func (s *service) Delete(req DeleteRequest, resp *DeleteResponse) error {
	if err := s.daemon.Delete(s.ctx, req.Ref); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

func (s *service) SetDirectory(req DirectorySetRequest, resp *DirectoryResponse) error {
	handle, err := s.daemon.SetDirectory(s.ctx, req.Path)
	if err != nil {
		return err
	}
	if handle != nil {
		resp.Path = handle.Path
		resp.AcquiredAt = handle.AcquiredAt.UTC().Format(time.RFC3339)
	}
	return nil
}

func (s *service) ClearDirectory(_ DirectoryClearRequest, resp *DirectoryClearResponse) error {
	if err := s.daemon.ClearDirectory(s.ctx); err != nil {
		return err
	}
	resp.Cleared = true
	return nil
}

func (s *service) Reconcile(req ReconcileRequest, resp *ReconcileResponse) error {
	relinked, err := s.daemon.Reconcile(s.ctx, req.Path)
	if err != nil {
		return err
	}
	resp.Relinked = relinked
	return nil
}

func (s *service) Export(req ExportRequest, resp *ExportResponse) error {
	doc, err := s.daemon.Export(s.ctx, req.IncludeImages)
	if err != nil {
		return err
	}
	resp.Document = *doc
	return nil
}

func (s *service) Import(req ImportRequest, resp *ImportResponse) error {
	result, err := s.daemon.Import(s.ctx, bytes.NewReader(req.Data))
	if err != nil {
		return err
	}
	resp.Imported = result.Imported
	resp.Skipped = result.Skipped
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	evts, next, err := s.daemon.Events(s.ctx, req.Since, req.Limit, wait)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Next = next
			return nil
		}
		return err
	}
	resp.Events = evts
	resp.Next = next
	return nil
}

func (s *service) SetSetting(req SettingRequest, _ *SettingResponse) error {
	return s.daemon.SetSetting(s.ctx, req.Key, req.Value)
}

func (s *service) Settings(_ SettingsRequest, resp *SettingsResponse) error {
	settings, err := s.daemon.Settings(s.ctx)
	if err != nil {
		return err
	}
	resp.Settings = settings
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	filter := logs.LineFilter(req.BatchID, req.Identity, req.Level)
	if err := filter.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "ipc", "log tail", err.Error(), nil)
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Filter: filter,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func captureOptions(forceActive bool, settleMS int) capture.Options {
	return capture.Options{
		ForceActive: forceActive,
		SettleDelay: time.Duration(settleMS) * time.Millisecond,
	}
}
