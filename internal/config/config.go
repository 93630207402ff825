package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabasePath          string
	ReceiptDir            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SummaryTTLSeconds     int
	AuthSecret            string
	AccessTokenTTLMinutes int
	CompanyName           string
	CompanySlogan         string
	CompanyLegalName      string
	CompanyTaxID          string
	CompanyAddress        string
	CompanyContact        string
	CompanyWebsite        string
	StoreURL              string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	summaryTTL, err := strconv.Atoi(getEnv("SUMMARY_TTL_SECONDS", "30"))
	if err != nil || summaryTTL < 1 {
		summaryTTL = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		DatabasePath:          os.Getenv("POS_DB_PATH"),
		ReceiptDir:            getEnv("RECEIPT_DIR", "receipts"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		SummaryTTLSeconds:     summaryTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		CompanyName:           getEnv("COMPANY_NAME", "BIOX"),
		CompanySlogan:         getEnv("COMPANY_SLOGAN", "Salud y Bienestar"),
		CompanyLegalName:      getEnv("COMPANY_LEGAL_NAME", "Biox Peru EIRL"),
		CompanyTaxID:          getEnv("COMPANY_TAX_ID", "RUC: 20603026811"),
		CompanyAddress:        getEnv("COMPANY_ADDRESS", "Av. San Martin 108 Miraflores-Arequipa"),
		CompanyContact:        getEnv("COMPANY_CONTACT", "tienda@biox.com.pe | 957888815 - 941035450"),
		CompanyWebsite:        getEnv("COMPANY_WEBSITE", "Biox.com.pe"),
		StoreURL:              getEnv("STORE_URL", "https://www.biox.com.pe"),
	}

	return cfg
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
