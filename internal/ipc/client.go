package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call("Tabshot."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Ping checks that the daemon answers.
func (c *Client) Ping() (*PingResponse, error) {
	return call[PingResponse](c, "Ping", PingRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// SubmitBatch starts a capture batch.
func (c *Client) SubmitBatch(req SubmitBatchRequest) (*SubmitBatchResponse, error) {
	return call[SubmitBatchResponse](c, "SubmitBatch", req)
}

// Capture captures one URL and waits for the result.
func (c *Client) Capture(req CaptureRequest) (*CaptureResponse, error) {
	return call[CaptureResponse](c, "Capture", req)
}

// Cancel requests cancellation of the running batch.
func (c *Client) Cancel() (*CancelResponse, error) {
	return call[CancelResponse](c, "Cancel", CancelRequest{})
}

// List returns thumbnail records optionally filtered by statuses.
func (c *Client) List(statuses []string) (*ListResponse, error) {
	return call[ListResponse](c, "List", ListRequest{Statuses: statuses})
}

// Describe returns a single record by identity or URL.
func (c *Client) Describe(ref string) (*DescribeResponse, error) {
	return call[DescribeResponse](c, "Describe", DescribeRequest{Ref: ref})
}

// Image fetches the stored image for a record.
func (c *Client) Image(ref string) (*ImageResponse, error) {
	return call[ImageResponse](c, "Image", ImageRequest{Ref: ref})
}

// Delete removes a record and its assets.
func (c *Client) Delete(ref string) (*DeleteResponse, error) {
	return call[DeleteResponse](c, "Delete", DeleteRequest{Ref: ref})
}

// SetDirectory acquires path as the external directory.
func (c *Client) SetDirectory(path string) (*DirectoryResponse, error) {
	return call[DirectoryResponse](c, "SetDirectory", DirectorySetRequest{Path: path})
}

// ClearDirectory releases the external directory.
func (c *Client) ClearDirectory() (*DirectoryClearResponse, error) {
	return call[DirectoryClearResponse](c, "ClearDirectory", DirectoryClearRequest{})
}

// Reconcile relinks records against files in path.
func (c *Client) Reconcile(path string) (*ReconcileResponse, error) {
	return call[ReconcileResponse](c, "Reconcile", ReconcileRequest{Path: path})
}

// Export builds a backup document.
func (c *Client) Export(includeImages bool) (*ExportResponse, error) {
	return call[ExportResponse](c, "Export", ExportRequest{IncludeImages: includeImages})
}

// Import restores a serialized backup document.
func (c *Client) Import(data []byte) (*ImportResponse, error) {
	return call[ImportResponse](c, "Import", ImportRequest{Data: data})
}

// Events fetches events after since.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", req)
}

// SetSetting stores a single setting.
func (c *Client) SetSetting(key, value string) error {
	_, err := call[SettingResponse](c, "SetSetting", SettingRequest{Key: key, Value: value})
	return err
}

// Settings lists stored settings.
func (c *Client) Settings() (*SettingsResponse, error) {
	return call[SettingsResponse](c, "Settings", SettingsRequest{})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
