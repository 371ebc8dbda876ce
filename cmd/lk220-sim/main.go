// lk220-sim serves an emulated Thorlabs LK220 chiller controller over TCP,
// for developing against the adaptor without hardware on the bench.
//
// Point the adaptor at it with serial.DialTCP, or poke it by hand:
//
//	$ lk220-sim -listen :5330
//	$ printf 'TACT?\r' | nc localhost 5330
package main

import (
	"flag"
	"net"
	"time"

	"github.com/chillerlab/go-lk220/logger"
	"github.com/chillerlab/go-lk220/sim"
)

func main() {
	listen := flag.String("listen", ":5330", "TCP listen address")
	tick := flag.Duration("tick", time.Second, "thermal model step interval")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := logger.GetLogger()
	if *debug {
		logger.SetLevel(logger.DebugLevel)
	}

	dev := sim.New()

	go func() {
		t := time.NewTicker(*tick)
		defer t.Stop()

		for range t.C {
			dev.Tick()
		}
	}()

	l, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatal("lk220-sim: listen failed", "address", *listen, "error", err)
	}

	log.Info("lk220-sim: serving", "address", l.Addr().String(), "identity", sim.DefaultIdentity)

	for {
		conn, err := l.Accept()
		if err != nil {
			log.Error("lk220-sim: accept failed", "error", err)

			continue
		}

		log.Info("lk220-sim: client connected", "remote", conn.RemoteAddr().String())

		go func() {
			defer func() { _ = conn.Close() }()

			err := dev.ServePort(conn)
			log.Info("lk220-sim: client disconnected",
				"remote", conn.RemoteAddr().String(),
				"reason", err,
			)
		}()
	}
}
