package main

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/dccex.go/pkg/config"
	"github.com/robotalks/dccex.go/pkg/dccex"
	fx "github.com/robotalks/dccex.go/pkg/framework"
	"github.com/robotalks/dccex.go/pkg/link"
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

	ch := dccex.NewChannel(&dccex.CommandStation{}, dccex.WithCapacity(conf.Channel.Capacity))
	if err := ch.Setup(link.NewPacketizer(port)); err != nil {
		log.Fatalln(err)
	}
	defer ch.Close()

	loop := fx.NewLoop().Add(ch)
	loop.Interval = conf.Channel.Tick.Duration
	if err := runner.Go(loop).Wait(); err != nil {
		glog.Errorf("command station stopped: %v", err)
	}
}
