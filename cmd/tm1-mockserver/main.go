package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"GoTM1Monitor/internal/logger"
	"GoTM1Monitor/internal/testserver"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:5001", "监听地址")
		origins   = flag.String("cors-origins", "*", "允许的CORS来源，逗号分隔，为空时关闭CORS")
		failFirst = flag.Int("fail-first", 0, "前N个请求返回503，用于演示客户端重连")
		verbose   = flag.Bool("verbose", false, "打印每个请求")
		logFile   = flag.String("log-file", "", "日志文件路径")
		cfgPath   = flag.String("config", "", "tm1monitor配置文件，其中各实例的账号可以登录，文件变化时重新同步")
	)
	flag.Parse()

	logger.InitLogger(logger.Options{Console: true, File: *logFile, MaxSizeMB: 10, MaxBackups: 3})
	defer logger.Close()

	config := testserver.DefaultServerConfig(*addr)
	config.FailFirstRequests = *failFirst
	config.Verbose = *verbose
	if *origins == "" {
		config.EnableCORS = false
	} else {
		config.AllowedOrigins = strings.Split(*origins, ",")
	}

	server := testserver.New(config, nil)
	if err := server.Start(); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}

	if *cfgPath != "" {
		if _, err := watchAccounts(server.State(), *cfgPath); err != nil {
			log.Printf("加载账号配置失败: %v", err)
		}
	}

	fmt.Printf("Mock TM1 server listening on %s\n", server.BaseURL())
	fmt.Println("Users: Admin/apple (ADMIN), Bob/bob, Alice/alice")

	// 优雅关闭
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("服务器关闭错误: %v", err)
	}
}
