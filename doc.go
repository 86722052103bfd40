// Package mqttws is an MQTT v5.0 client that runs over WebSocket.
//
// This package implements the client side of the MQTT Version 5.0 OASIS
// Standard: https://docs.oasis-open.org/mqtt/mqtt/v5.0/mqtt-v5.0.html
//
// # Features
//
//   - All 15 MQTT v5.0 control packet types with typed properties
//   - QoS 0, 1 and 2 in both directions
//   - Send quota from the broker's Receive Maximum
//   - Topic aliases, inbound and outbound
//   - Automatic reconnection with jittered exponential backoff
//   - Session resumption: outstanding publishes are redriven and
//     subscriptions are replayed when the broker lost the session
//   - HTTP CONNECT and SOCKS5 proxies for the WebSocket handshake
//
// # Client
//
//	client := mqttws.New("wss://broker.example.com/mqtt",
//	    mqttws.WithLogger(mqttws.NewStdLogger(os.Stderr, mqttws.LogLevelInfo)),
//	)
//	defer client.Close()
//
//	connack, err := client.Connect(ctx, &mqttws.ConnectPacket{
//	    ClientID:   "sensor-1",
//	    CleanStart: true,
//	    KeepAlive:  30,
//	})
//
// Subscribing registers a handler for each filter of the packet:
//
//	_, err = client.Subscribe(ctx, &mqttws.SubscribePacket{
//	    Subscriptions: []mqttws.Subscription{{TopicFilter: "sensors/+/temp", QoS: 1}},
//	}, func(msg *mqttws.Message) {
//	    fmt.Println(msg.Topic, string(msg.Payload))
//	})
//
// Publishing waits for the acknowledgement the QoS level calls for:
//
//	err = client.Publish(ctx, &mqttws.Message{
//	    Topic:   "sensors/1/temp",
//	    Payload: []byte("21.5"),
//	    QoS:     2,
//	})
//
// # Events
//
// Lifecycle changes are reported as Event values through WithOnEvent
// handlers and Client.Events channels. Handlers and message handlers run on
// a single dispatch goroutine in order, so they may call the client.
//
// # Packets
//
// The codec is usable on its own. ReadPacket and WritePacket work on any
// stream, EncodePacket produces one packet as bytes:
//
//	pkt, n, err := mqttws.ReadPacket(r, maxPacketSize)
//	n, err = mqttws.WritePacket(w, pkt, maxPacketSize)
//
// Decode failures are *DecodeError values matching ErrMalformedPacket.
package mqttws
