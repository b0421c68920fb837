// Package transport realizes spec §6's input/output topic list over
// ROS2, generalizing the teacher's communicationlink/ros2app helpers
// (a thin Subscriptions registry plus a NewPublisher wrapper) from
// "one node per MQTT bridge concern" to "one node pair — vehicle-local
// and fleet-scoped — wired straight to the Commander Loop."
package transport

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/tiiuae/rclgo/pkg/rclgo"
	"github.com/tiiuae/rclgo/pkg/rclgo/typemap"
)

// subscriptionSpec is one topic/message-type/handler triple, exactly
// the teacher's ros2app.Subscription shape.
type subscriptionSpec struct {
	topicName   string
	messageType string
	handler     rclgo.SubscriptionCallback
}

// Subscriptions batches a node's subscriptions so they can all be
// opened together and spun in their own goroutines (ros2app.Subscribe).
type Subscriptions struct {
	node *rclgo.Node
	subs []*subscriptionSpec
}

// NewSubscriptions returns an empty registry bound to node.
func NewSubscriptions(node *rclgo.Node) *Subscriptions {
	return &Subscriptions{node: node}
}

// Add registers a topic/handler pair to be subscribed on Open.
func (s *Subscriptions) Add(topicName, messageType string, handler rclgo.SubscriptionCallback) {
	s.subs = append(s.subs, &subscriptionSpec{topicName, messageType, handler})
}

// Open creates every registered subscription and spins each on its
// own goroutine until ctx is done, matching the teacher's per-topic
// 5-second spin deadline.
func (s *Subscriptions) Open(ctx context.Context) error {
	for _, spec := range s.subs {
		msg, ok := typemap.GetMessage(spec.messageType)
		if !ok {
			return errors.Errorf("unable to map message type: %s", spec.messageType)
		}
		sub, err := s.node.NewSubscription(spec.topicName, msg, spec.handler)
		if err != nil {
			return errors.WithMessagef(err, "unable to subscribe to topic %s", spec.topicName)
		}
		go func(sub *rclgo.Subscription, topic string) {
			if err := sub.Spin(ctx, 5*time.Second); err != nil {
				log.Printf("transport: subscription to %s ended: %v", topic, err)
			}
		}(sub, spec.topicName)
	}
	return nil
}

// newPublisher creates a reliable publisher for messageType, matching
// the teacher's ros2app.NewPublisher defaults.
func newPublisher(node *rclgo.Node, topicName, messageType string) (*rclgo.Publisher, error) {
	msg, ok := typemap.GetMessage(messageType)
	if !ok {
		return nil, errors.Errorf("unable to map message type: %s", messageType)
	}
	opts := rclgo.NewDefaultPublisherOptions()
	opts.Qos.Reliability = rclgo.RmwQosReliabilityPolicySystemDefault
	return node.NewPublisher(topicName, msg, opts)
}
