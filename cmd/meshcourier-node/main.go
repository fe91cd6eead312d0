package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"meshcourier/internal/address"
	"meshcourier/internal/addressbook"
	"meshcourier/internal/beacon"
	"meshcourier/internal/engine"
	"meshcourier/internal/identity"
	"meshcourier/internal/netx"
	"meshcourier/internal/paths"
	"meshcourier/internal/store/boltstore"
	"meshcourier/internal/strategy"
	"meshcourier/internal/telemetry"
	"meshcourier/internal/transport/noisetransport"
	"meshcourier/internal/uiutil"
)

func main() {
	name := flag.String("name", "anon", "display name")
	bind := flag.String("bind", ":0", "bind address (e.g. :0 for random port)")
	connect := flag.String("connect", "", "address of a peer to dial on startup, host:port")
	dataDir := flag.String("data-dir", "", "directory for the notification store and identity (default: "+paths.Dir()+")")
	strategyName := flag.String("strategy", "epidemic", "forwarding strategy: direct, epidemic, or sprayandwait")
	copies := flag.Uint("copies", 4, "initial copy budget for sprayandwait (ignored otherwise)")
	mtu := flag.Int("mtu", 4096, "max notification frame length in bytes")
	debug := flag.Bool("debug", false, "enable debug logging")
	beaconOn := flag.Bool("beacon", false, "answer LAN discovery pings so other nodes can find this one")
	discover := flag.Bool("discover", false, "broadcast a LAN discovery ping on startup and dial the first peer found")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		dir = paths.Dir()
	}

	strat, err := buildStrategy(*strategyName, uint8(*copies))
	if err != nil {
		log.Fatalf("strategy: %v", err)
	}

	st, err := boltstore.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	self, err := ownAddress(st, *name)
	if err != nil {
		log.Fatalf("own address: %v", err)
	}

	book, err := addressbook.New(filepath.Join(dir, "contacts.json"))
	if err != nil {
		log.Fatalf("open address book: %v", err)
	}

	kp, err := identity.LoadOrCreate(filepath.Join(dir, "identity-noise.key"))
	if err != nil {
		log.Fatalf("load identity: %v", err)
	}

	zlog, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()
	logger := telemetry.NewZap(zlog)

	e, err := engine.New(engine.Config{
		Store:                 st,
		Strategy:              strat,
		Self:                  self,
		AddressBook:           book,
		Logger:                logger,
		MaxNotificationLength: *mtu,
	})
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}

	net := netx.NewTCPNetwork()
	listenAddr, err := net.Listen(*bind)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	fmt.Printf("meshcourier node started (%s)\n", *strategyName)
	fmt.Printf("address: %s\n", hex.EncodeToString(self.Hashed[:]))
	fmt.Printf("listening on: %s\n\n", listenAddr)
	fmt.Println("commands:")
	fmt.Println("  /send <hex-address> <message>")
	fmt.Println("  /inbox")
	fmt.Println("  /contacts")
	fmt.Println("  /copies <n>")
	fmt.Println("  /rssi <n>")
	fmt.Println("  /id")
	fmt.Println("  /quit")
	fmt.Println()

	go acceptLoop(net, kp, *mtu, e, logger)

	if *beaconOn {
		stop := make(chan struct{})
		defer close(stop)
		if err := beacon.StartResponder(stop, beacon.DefaultConfig(), string(listenAddr)); err != nil {
			fmt.Printf("beacon responder failed to start: %v\n", err)
		} else {
			fmt.Println("answering discovery pings")
		}
	}

	connectTo := *connect
	if connectTo == "" && *discover {
		beaconCfg := beacon.DefaultConfig()
		beaconCfg.RSSIMin = e.RssiThreshold()
		sightings, err := beacon.Discover(beaconCfg, string(listenAddr))
		if err != nil {
			fmt.Printf("discovery failed: %v\n", err)
		} else if len(sightings) == 0 {
			fmt.Println("discovery found no peers")
		} else {
			fmt.Printf("discovery found %s (tag %s, rssi %d)\n", sightings[0].Addr, sightings[0].Tag, sightings[0].RSSI)
			connectTo = sightings[0].Addr
		}
	}

	if connectTo != "" {
		link, err := noisetransport.Dial(net, netx.Addr(connectTo), kp.Private, kp.Public, *mtu, e, logger)
		if err != nil {
			fmt.Printf("connect to %s failed: %v\n", connectTo, err)
		} else {
			e.SetLink(link)
			fmt.Printf("connected to %s\n", connectTo)
		}
	}

	runCommandLoop(e, book, *name)
}

type contactNamer interface {
	NameFor(hashed [32]byte) (string, bool)
}

func buildStrategy(name string, copies uint8) (strategy.Strategy, error) {
	switch strings.ToLower(name) {
	case "direct":
		return strategy.Direct{}, nil
	case "epidemic":
		return strategy.Epidemic{}, nil
	case "sprayandwait", "spray-and-wait", "spray":
		return strategy.NewSprayAndWait(copies)
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func ownAddress(st *boltstore.Store, name string) (address.Address, error) {
	a, err := st.OwnAddress()
	if err == nil {
		return a, nil
	}
	fresh, err := address.New()
	if err != nil {
		return address.Address{}, err
	}
	fresh.IsOwn = true
	fresh.Name = name
	if err := st.SaveAddress(fresh); err != nil {
		return address.Address{}, err
	}
	return fresh, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func acceptLoop(net netx.Network, kp identity.KeyPair, mtu int, e *engine.Engine, logger telemetry.Logger) {
	for {
		conn, err := net.Accept()
		if err != nil {
			logger.Printf("accept: %v", err)
			return
		}
		link, err := noisetransport.Accept(conn, kp.Private, kp.Public, mtu, e, logger)
		if err != nil {
			logger.Printf("accept handshake from %s: %v", conn.RemoteAddr(), err)
			continue
		}
		e.SetLink(link)
		fmt.Printf("\npeer connected: %s\n", conn.RemoteAddr())
	}
}

func runCommandLoop(e *engine.Engine, book contactNamer, selfName string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			fmt.Println("quitting...")
			os.Exit(0)

		case strings.HasPrefix(line, "/send "):
			handleSend(e, strings.TrimSpace(strings.TrimPrefix(line, "/send")))

		case line == "/inbox":
			handleInbox(e, book)

		case line == "/contacts":
			handleContacts(e)

		case strings.HasPrefix(line, "/copies "):
			handleCopies(e, strings.TrimSpace(strings.TrimPrefix(line, "/copies")))

		case strings.HasPrefix(line, "/rssi "):
			handleRSSI(e, strings.TrimSpace(strings.TrimPrefix(line, "/rssi")))

		case line == "/id":
			self := e.Address()
			fmt.Printf("%s  %s\n", hex.EncodeToString(self.Hashed[:]), uiutil.FormatName(selfName, self.Hashed))

		default:
			fmt.Println("unknown command")
		}
	}
}

func handleSend(e *engine.Engine, arg string) {
	parts := strings.SplitN(arg, " ", 2)
	if len(parts) != 2 {
		fmt.Println("usage: /send <hex-address> <message>")
		return
	}
	destBytes, err := hex.DecodeString(parts[0])
	if err != nil || len(destBytes) != 32 {
		fmt.Println("destination must be a 64-character hex address")
		return
	}
	var dest [32]byte
	copy(dest[:], destBytes)

	if err := e.Send(dest, parts[1], time.Now()); err != nil {
		fmt.Printf("send failed: %v\n", err)
		return
	}
	e.TransmitNotifications()
	fmt.Println("queued")
}

func handleInbox(e *engine.Engine, book contactNamer) {
	inbox := e.Inbox()
	if len(inbox) == 0 {
		fmt.Println("(empty)")
		return
	}
	for _, n := range inbox {
		name, ok := book.NameFor(n.HashedSourceAddress)
		if !ok {
			name = ""
		}
		fmt.Printf("[%s] %s\n", uiutil.FormatName(name, n.HashedSourceAddress), n.Message)
	}
}

func handleContacts(e *engine.Engine) {
	contacts := e.Contacts()
	if len(contacts) == 0 {
		fmt.Println("(no known contacts)")
		return
	}
	for _, c := range contacts {
		fmt.Printf("%s  %s\n", hex.EncodeToString(c.Hashed[:]), uiutil.FormatName(c.Name, c.Hashed))
	}
}

func handleCopies(e *engine.Engine, arg string) {
	n, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		fmt.Println("usage: /copies <n>")
		return
	}
	if err := e.SetNumberOfCopies(uint8(n)); err != nil {
		fmt.Printf("set copies failed: %v\n", err)
		return
	}
	fmt.Printf("copy budget set to %d\n", n)
}

func handleRSSI(e *engine.Engine, arg string) {
	n, err := strconv.ParseInt(arg, 10, 8)
	if err != nil {
		fmt.Println("usage: /rssi <n>")
		return
	}
	e.SetRssiThreshold(int8(n))
	fmt.Printf("rssi threshold set to %d\n", n)
}
