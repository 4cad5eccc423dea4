package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"debate_live/internal/api"
	"debate_live/internal/models"
	"debate_live/internal/repository"
	"debate_live/internal/service"
	"debate_live/internal/storage"
	"debate_live/pkg/config"
)

func main() {
	// 載入應用程式配置
	// 從配置文件中讀取設置，如數據庫連接信息和服務器地址等
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(storage.Config{
		Host:     cfg.DB.Host,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Name:     cfg.DB.Name,
		Port:     cfg.DB.Port,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	// 遷移用戶、辯論會話與已用代碼帳目三個模型
	if err := db.AutoMigrate(&models.User{}, &models.DebateSession{}, &models.UsedCode{}); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化 repositories
	repos := repository.NewRepositories(db)

	// 初始化 services
	services := service.NewServices(repos)

	// 重啟前遺留的 active 會話沒有對應的引擎，啟動時直接收掉
	if n, err := services.Session.RecoverInterrupted(); err != nil {
		log.Printf("收拾中斷會話失敗: %v", err)
	} else if n > 0 {
		log.Printf("收拾了 %d 個中斷的會話", n)
	}

	// 定期清理建立後一直無人加入的會話
	go runCleanup(services.Session, cfg.Cleanup)

	// 設置 Gin 路由
	r := gin.Default()
	api.SetupRoutes(r, services)

	// 啟動伺服器
	// 使用配置中指定的地址啟動 HTTP 服務器
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// runCleanup 以固定間隔清掉過期的等待中會話
func runCleanup(sessions *service.SessionService, cfg config.CleanupConfig) {
	retention := time.Duration(cfg.RetentionHours) * time.Hour
	ticker := time.NewTicker(time.Duration(cfg.IntervalHours) * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		n, err := sessions.CleanupExpired(retention)
		if err != nil {
			log.Printf("清理過期會話失敗: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("清理了 %d 個過期會話", n)
		}
	}
}
