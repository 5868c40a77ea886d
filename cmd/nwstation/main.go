package main

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/dccex.go/pkg/config"
	"github.com/robotalks/dccex.go/pkg/dccex"
	fx "github.com/robotalks/dccex.go/pkg/framework"
	"github.com/robotalks/dccex.go/pkg/link"
	"github.com/robotalks/dccex.go/pkg/network"
	"github.com/robotalks/dccex.go/pkg/network/mqtt"
	"github.com/robotalks/dccex.go/pkg/network/websocket"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := config.MustNewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}

	runner := fx.NewRunner().HandleSignals()
	// reopened whenever the serial link fails
	port := link.NewRedialer(conf.Dialer())

	hub := network.NewHub()
	ch := dccex.NewChannel(&dccex.NetworkStation{Sink: hub}, dccex.WithCapacity(conf.Channel.Capacity))
	hub.Channel = ch
	if err := ch.Setup(link.NewPacketizer(port)); err != nil {
		log.Fatalln(err)
	}
	defer ch.Close()

	loop := fx.NewLoop().Add(ch)
	loop.Interval = conf.Channel.Tick.Duration
	if conf.MQTT.URL != "" {
		bridge, err := mqtt.NewBridge(conf.MQTT.URL, conf.MQTTClientID(), hub)
		if err != nil {
			log.Fatalln(err)
		}
		loop.AddRunnable(bridge)
	}
	if conf.WebSocket.Listen != "" {
		loop.AddRunnable(websocket.NewServer(conf.WebSocket.Listen, hub))
	}

	if err := runner.Go(loop).Wait(); err != nil {
		glog.Errorf("network station stopped: %v", err)
	}
}
