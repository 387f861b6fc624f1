package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tabshot/internal/api"
)

var ErrAPIUnavailable = errors.New("event API unavailable")

// EventClient reads the daemon's capture event feed over HTTP.
type EventClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

type EventQuery struct {
	Since uint64
	Limit int
	Wait  time.Duration
}

func NewEventClient(bind, token string) (*EventClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &EventClient{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - long-polls block until the server's wait elapses or the caller cancels.
		http: &http.Client{},
	}, nil
}

func (c *EventClient) Fetch(ctx context.Context, q EventQuery) (api.EventsResponse, error) {
	if c == nil {
		return api.EventsResponse{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Wait > 0 {
		values.Set("wait", q.Wait.String())
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/events", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.EventsResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.EventsResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return api.EventsResponse{}, fmt.Errorf("api events returned status %d", resp.StatusCode)
	}

	var payload api.EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.EventsResponse{}, err
	}
	return payload, nil
}

func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
