package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/attendlog/internal/auth"
	"github.com/attendlog/internal/config"
	"github.com/attendlog/internal/db"
)

// 初始化管理员账号，并可选地生成 TOTP 密钥。
func main() {
	cfg := config.Load()

	username := flag.String("user", "admin", "admin user name")
	password := flag.String("password", "admin123", "admin password")
	withTOTP := flag.Bool("totp", false, "generate an ADMIN_TOTP_SECRET as well")
	flag.Parse()

	// 初始化数据库
	gdb, err := db.Init(cfg.DatabaseURL, nil)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	if err := db.EnsureUser(gdb, *username, *password); err != nil {
		log.Fatal("创建用户失败:", err)
	}
	fmt.Println("管理员用户已就绪")
	fmt.Println("用户名:", *username)

	if *withTOTP {
		secret, url, err := auth.GenerateTOTPSecret(*username)
		if err != nil {
			log.Fatal("生成 TOTP 密钥失败:", err)
		}
		fmt.Println("ADMIN_TOTP_SECRET=" + secret)
		fmt.Println("otpauth:", url)
	}
}
