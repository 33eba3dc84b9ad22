package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"academy_billing_app/internal/services"
)

// Manual smoke test for the WAHA reminder channel.
func main() {
	phone := flag.String("phone", "", "Phone number (e.g. 628123456789)")
	msg := flag.String("msg", "Test message from WahaService", "Message body")
	flag.Parse()

	if *phone == "" {
		log.Fatal("Please provide a phone number using -phone flag")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found")
	}

	service := services.NewWahaService()
	chatId := services.NormalizeChatID(*phone)

	log.Printf("Sending message to %s: %s", chatId, *msg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.SendMessage(ctx, chatId, *msg); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}

	log.Println("Message sent successfully!")
}
