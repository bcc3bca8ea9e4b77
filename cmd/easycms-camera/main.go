// Command easycms-camera is a simulated camera for exercising a hub.
//
// It connects to a hub, registers under a serial, heartbeats, and
// answers the hub's stream start/stop requests the way camera
// firmware would. Optionally it posts a snapshot image after
// registering.
//
// Usage:
//
//	easycms-camera [flags]
//
// Flags:
//
//	-hub string        Hub address (default "127.0.0.1:10000")
//	-serial string     Device serial (default "SIM00001")
//	-name string       Device name (default serial)
//	-type string       App type: EasyCamera, EasyNVR (default "EasyCamera")
//	-channels int      Channel count for EasyNVR (default 4)
//	-heartbeat duration  Heartbeat interval (default 30s)
//	-snapshot string   Image file to post once after registering
//
// Examples:
//
//	# Simulate a camera against a local hub
//	easycms-camera -serial CAM001
//
//	# Simulate a 16-channel NVR
//	easycms-camera -type EasyNVR -serial NVR001 -channels 16
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/easydarwin/easycms-go/pkg/protocol"
	"github.com/easydarwin/easycms-go/pkg/transport"
)

var flags struct {
	hub       string
	serial    string
	name      string
	appType   string
	channels  int
	heartbeat time.Duration
	snapshot  string
}

func init() {
	flag.StringVar(&flags.hub, "hub", "127.0.0.1:10000", "Hub address")
	flag.StringVar(&flags.serial, "serial", "SIM00001", "Device serial")
	flag.StringVar(&flags.name, "name", "", "Device name (default serial)")
	flag.StringVar(&flags.appType, "type", "EasyCamera", "App type: EasyCamera, EasyNVR")
	flag.IntVar(&flags.channels, "channels", 4, "Channel count for EasyNVR")
	flag.DurationVar(&flags.heartbeat, "heartbeat", 30*time.Second, "Heartbeat interval")
	flag.StringVar(&flags.snapshot, "snapshot", "", "Image file to post once after registering")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	if flags.name == "" {
		flags.name = flags.serial
	}
	if protocol.ParseAppType(flags.appType) == 0 {
		log.Fatalf("Unknown app type: %s", flags.appType)
	}

	client, err := transport.Dial(flags.hub, 5*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()
	log.Printf("Connected to hub at %s", flags.hub)

	var cseq uint32 = 1
	if err := sendRegister(client, cseq); err != nil {
		log.Fatalf("Failed to register: %v", err)
	}

	// All inbound frames arrive on one goroutine: acks to our own
	// requests plus the hub's stream pushes.
	go readLoop(client)

	if flags.snapshot != "" {
		cseq++
		if err := sendSnapshot(client, cseq); err != nil {
			log.Printf("Failed to post snapshot: %v", err)
		}
	}

	ticker := time.NewTicker(flags.heartbeat)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			cseq++
			if err := sendRegister(client, cseq); err != nil {
				log.Fatalf("Heartbeat failed: %v", err)
			}
		case sig := <-sigCh:
			log.Printf("Received signal: %v, exiting", sig)
			return
		}
	}
}

func sendRegister(client *transport.Client, cseq uint32) error {
	env := protocol.NewRequest(protocol.KindDSRegisterReq, cseq)
	env.Set(protocol.TagSerial, flags.serial)
	env.Set(protocol.TagName, flags.name)
	env.Set(protocol.TagAppType, flags.appType)
	env.Set(protocol.TagTerminalType, "Simulator")

	if protocol.ParseAppType(flags.appType) == protocol.AppTypeNVR {
		channels := make([]protocol.ChannelInfo, flags.channels)
		for i := range channels {
			channels[i] = protocol.ChannelInfo{
				Channel: fmt.Sprintf("%d", i+1),
				Name:    fmt.Sprintf("%s-ch%d", flags.name, i+1),
				Status:  "online",
			}
		}
		env.Set(protocol.TagChannelCount, flags.channels)
		env.Set(protocol.TagChannels, channels)
	}

	return post(client, env)
}

func sendSnapshot(client *transport.Client, cseq uint32) error {
	img, err := os.ReadFile(flags.snapshot)
	if err != nil {
		return err
	}

	env := protocol.NewRequest(protocol.KindDSPostSnapReq, cseq)
	env.Set(protocol.TagSerial, flags.serial)
	env.Set(protocol.TagChannel, "0")
	env.Set(protocol.TagType, "jpg")
	env.Set(protocol.TagTime, time.Now().Format("2006-01-02 15:04:05"))
	env.Set(protocol.TagImage, base64.StdEncoding.EncodeToString(img))
	return post(client, env)
}

func readLoop(client *transport.Client) {
	for {
		resp, err := client.Receive(0)
		if err != nil {
			log.Fatalf("Connection lost: %v", err)
		}

		env, err := protocol.Decode(resp.Body)
		if err != nil {
			log.Printf("Undecodable frame from hub: %v", err)
			continue
		}

		switch env.Header.MessageType {
		case protocol.KindSDPushStreamReq:
			log.Printf("Hub requests stream %s/%s to %s:%s",
				env.BodyString(protocol.TagSerial),
				env.BodyString(protocol.TagChannel),
				env.BodyString(protocol.TagServerAddr),
				env.BodyString(protocol.TagServerPort))
			ackPush(client, env, protocol.KindDSPushStreamAck)

		case protocol.KindSDStreamStopReq:
			log.Printf("Hub requests stream stop %s/%s",
				env.BodyString(protocol.TagSerial),
				env.BodyString(protocol.TagChannel))
			ackPush(client, env, protocol.KindDSStreamStopAck)

		case protocol.KindSDRegisterAck:
			if env.Header.ErrorNum != protocol.ErrSuccessOK {
				log.Fatalf("Registration rejected: %d %s",
					int(env.Header.ErrorNum), env.Header.ErrorString)
			}
			log.Printf("Registered as %s (session %s)",
				flags.serial, env.BodyString(protocol.TagSessionID))

		case protocol.KindSDPostSnapAck:
			log.Printf("Snapshot stored at %s", env.BodyString(protocol.TagSnapURL))

		default:
			log.Printf("Hub sent %s (ErrorNum %d)",
				env.Header.MessageType.String(), int(env.Header.ErrorNum))
		}
	}
}

// ackPush answers a hub-initiated request, echoing its CSeq.
func ackPush(client *transport.Client, req *protocol.Envelope, kind protocol.MessageKind) {
	ack := protocol.NewAck(kind, req.Header.CSeq, protocol.ErrSuccessOK)
	ack.Set(protocol.TagSerial, req.BodyString(protocol.TagSerial))
	ack.Set(protocol.TagChannel, req.BodyString(protocol.TagChannel))
	if err := post(client, ack); err != nil {
		log.Printf("Failed to ack %s: %v", kind.String(), err)
	}
}

func post(client *transport.Client, env *protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return client.Post("/", data)
}
