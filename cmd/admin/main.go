package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"cvCanvas/internal/auth"
	"cvCanvas/internal/config"
	"cvCanvas/internal/database"
)

// admin 创建账号或重置其密码、执行数据库迁移，也可清理卡住的导出状态。数据库连接沿用 API 的环境变量。
func main() {
	var (
		username    = flag.String("username", "", "账号用户名（必填）")
		migrateOnly = flag.Bool("migrate-only", false, "只执行数据库迁移")
		resetStuck  = flag.Duration("reset-stuck-exports", 0, "将超过该时长仍未完成的导出标记为失败，例如 1h")
	)
	flag.Parse()

	cfg := config.MustLoad()
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	if *resetStuck > 0 {
		n, err := database.ResetStuckExports(context.Background(), db, *resetStuck, time.Now())
		if err != nil {
			log.Fatalf("reset stuck exports: %v", err)
		}
		fmt.Printf("已重置 %d 个卡住的导出任务。\n", n)
		if strings.TrimSpace(*username) == "" {
			return
		}
	}
	if *migrateOnly {
		fmt.Println("数据库迁移完成。")
		return
	}

	u := strings.TrimSpace(*username)
	if u == "" {
		log.Fatal("missing required flag: --username")
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	user, created, err := auth.NewAccounts(db, false).Ensure(context.Background(), u, password)
	if err != nil {
		log.Fatalf("ensure user: %v", err)
	}

	if created {
		fmt.Printf("已创建账号（ID %d）：\n", user.ID)
	} else {
		fmt.Printf("账号已存在，密码已重置（ID %d）：\n", user.ID)
	}
	fmt.Printf("用户名: %s\n", u)
	fmt.Printf("密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次。\n")
}

func generateRandomPassword(bytesLen int) (string, error) {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
