package mqtt

import (
	"sort"
	"sync"
)

// route is one subscription the client restores after a reconnect.
type route struct {
	filter  string
	qos     byte
	handler MessageHandler
}

// routeTable maps topic filters to handlers. The zero value is ready.
type routeTable struct {
	mu sync.RWMutex
	m  map[string]route
}

func (t *routeTable) put(r route) {
	t.mu.Lock()
	if t.m == nil {
		t.m = make(map[string]route)
	}
	t.m[r.filter] = r
	t.mu.Unlock()
}

func (t *routeTable) drop(filter string) {
	t.mu.Lock()
	delete(t.m, filter)
	t.mu.Unlock()
}

func (t *routeTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// all returns the routes ordered by filter.
func (t *routeTable) all() []route {
	t.mu.RLock()
	out := make([]route, 0, len(t.m))
	for _, r := range t.m {
		out = append(out, r)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].filter < out[j].filter })
	return out
}

// Subscribe routes messages matching filter to handler. Filters may use the
// + and # wildcards, e.g. Topics{}.AllCommands(). Subscribing an existing
// filter again replaces its handler.
//
// The route is kept only if the broker acknowledges the SUBSCRIBE; from then
// on it is replayed after every reconnect.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNilHandler, ErrNotConnected,
//     or ErrSubscribeFailed wrapping the broker's answer
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := checkTopic(filter, qos); err != nil {
		return err
	}
	if handler == nil {
		return ErrNilHandler
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	r := route{filter: filter, qos: qos, handler: handler}
	c.routes.put(r)
	if err := await(c.paho.Subscribe(filter, qos, c.dispatch(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.routes.drop(filter)
		return err
	}
	return nil
}

// Unsubscribe forgets the route for filter and tells the broker. Messages
// already in flight may still reach the old handler.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.routes.drop(filter)
	return await(c.paho.Unsubscribe(filter), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// Subscriptions lists the active filters in sorted order.
func (c *Client) Subscriptions() []string {
	routes := c.routes.all()
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.filter
	}
	return out
}
