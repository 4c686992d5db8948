package main

import (
	"context"
	"log"
	"time"

	global "Parley/global"
	"Parley/logger"
	mid "Parley/middleware"
	chathdl "Parley/module/chat/handler"
	chatsvc "Parley/module/chat/service"
	"Parley/module/chat/store"
	"Parley/module/delivery/fanout"
	"Parley/module/delivery/mailbox"
	"Parley/module/delivery/receipt"
	"Parley/module/user"
	"Parley/service/chat"
	mgoSrv "Parley/service/mgo"
	"Parley/service/natsx"
	"Parley/tools"

	"github.com/gin-gonic/gin"
)

func main() {
	defer logger.Sync()

	// Broker consumers dedupe on the envelope id carried in Nats-Msg-Id;
	// middlewares must be registered before the connection starts.
	natsx.UseGlobalMiddlewares(natsx.IdemMiddleware(natsx.NewMemIdem(10*time.Minute), 10*time.Minute))

	global.ConfigAll()

	// Persistence must be up before we accept traffic.
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mgoSrv.WaitReady(waitCtx); err != nil {
		log.Fatalf("mongo not ready: %v", err)
	}
	st := store.NewStore(mgoSrv.GetDB())
	if err := st.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}

	// Delivery core.
	boxes := mailbox.NewStore(mailbox.Config{})
	defer boxes.Close()
	ledger := receipt.NewLedger(st)
	pub := fanout.NewPublisher(natsx.EnvelopeBroker{}, boxes, ledger)
	svc := chatsvc.New(st, pub, ledger)

	// Websocket push edge.
	mgr := chat.NewConnManager()
	fan := chat.NewFanout(8, 1024)
	ws := chat.NewServer(mgr, fan, svc)
	bridge := chat.NewBridge(mgr, fan, svc)
	if err := bridge.Start(); err != nil {
		log.Fatalf("bridge subscribe: %v", err)
	}
	defer func() { _ = natsx.StopNats() }()

	h := chathdl.New(svc, boxes)
	uh := user.NewHandler(st)

	r := gin.New()
	r.Use(gin.Recovery())

	mid.POST(r, "/login", uh.HandlerLogin, mid.RouteOpt{IsAuth: false})
	mid.POST(r, "/messages", h.HandlerSend, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/poll", h.HandlerPoll, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/messages/read", h.HandlerMarkRead, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/messages/:id/receipts", h.HandlerReceipts, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/conversations", h.HandlerCreateConversation, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/conversations/:id/messages", h.HandlerHistory, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/conversations/:id/presence", h.HandlerPresence, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/ws", ws.HandleWS, mid.RouteOpt{IsAuth: true})

	addr := tools.GetEnv("PARLEY_HTTP_ADDR", ":8080")
	logger.Infof("[http] listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}
