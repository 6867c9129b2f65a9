package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/ambufleet/dispatch/core/model"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	topics     []string
	payloads   [][]byte
	publishErr error
}

func (c *fakeClient) Connect() paho.Token { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)     {}
func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return &fakeToken{err: c.publishErr}
}

func withFakeClient(t *testing.T, c *fakeClient) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return c }
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestNotifyNewAssignment(t *testing.T) {
	fake := &fakeClient{}
	withFakeClient(t, fake)

	n, err := NewPahoNotifier(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	defer n.Close()

	b := model.Booking{
		ID:               "b1",
		PatientName:      "Jean",
		AssignedDriverID: "d1",
		Pickup:           model.Location{Address: "12 rue des Lilas"},
		Destination:      model.Location{Address: "CHU Nord"},
		RequestedStart:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.NotifyNewAssignment(context.Background(), b))
	require.Len(t, fake.topics, 1)
	require.Equal(t, "ambufleet/driver/d1/assignment", fake.topics[0])

	var alert assignmentAlert
	require.NoError(t, json.Unmarshal(fake.payloads[0], &alert))
	require.Equal(t, "b1", alert.BookingID)
	require.Equal(t, "12 rue des Lilas", alert.Pickup)
}

func TestNotifyNewAssignmentRequiresDriver(t *testing.T) {
	withFakeClient(t, &fakeClient{})
	n, err := NewPahoNotifier(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	require.Error(t, n.NotifyNewAssignment(context.Background(), model.Booking{ID: "b1"}))
}

func TestNotifyNewAssignmentPublishError(t *testing.T) {
	fake := &fakeClient{publishErr: errors.New("broker gone")}
	withFakeClient(t, fake)
	n, err := NewPahoNotifier(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	require.Error(t, n.NotifyNewAssignment(context.Background(), model.Booking{ID: "b1", AssignedDriverID: "d1"}))
}

func TestNewPahoNotifierRequiresBroker(t *testing.T) {
	_, err := NewPahoNotifier(Config{})
	require.Error(t, err)
}

func TestMockNotifier(t *testing.T) {
	m := NewMockNotifier()
	m.FailNext = true
	require.Error(t, m.NotifyNewAssignment(context.Background(), model.Booking{ID: "b1"}))
	require.NoError(t, m.NotifyNewAssignment(context.Background(), model.Booking{ID: "b1"}))
	require.Equal(t, 1, m.Count())
}
