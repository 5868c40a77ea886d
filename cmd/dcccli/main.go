package main

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/dccex.go/pkg/cli/sh"
	"github.com/robotalks/dccex.go/pkg/config"
	"github.com/robotalks/dccex.go/pkg/dccex"
	fx "github.com/robotalks/dccex.go/pkg/framework"
	"github.com/robotalks/dccex.go/pkg/network"
)

//go-build: CGO_ENABLED=0

var manualTick bool

func init() {
	config.SetupFlags()
	flag.BoolVar(&manualTick, "manual", manualTick, "Do not tick automatically, use the tick command.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := config.MustNewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}

	hub := network.NewHub()
	ch := dccex.NewChannel(&dccex.NetworkStation{Sink: hub}, dccex.WithCapacity(conf.Channel.Capacity))
	hub.Channel = ch
	p, err := ch.SetupSerial(conf.Serial.Port, conf.Serial.Baud)
	if err != nil {
		log.Fatalln(err)
	}
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if manualTick {
		// frames are still read in the background, tick delivers them
		go p.Run(ctx)
	} else {
		loop := fx.NewLoop().Add(ch)
		loop.Interval = conf.Channel.Tick.Duration
		go loop.Run(ctx)
	}

	sh.New(ch, hub).Run(flag.Args()...)
}
