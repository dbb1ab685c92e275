package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

type demoCar struct {
	Title       string
	Price       string
	Description string
	Seller      string
}

var demoCars = []demoCar{
	{"BMW M5 F90", "1500000", "Drift ayarlı, 1695HP, full çizim.", "KingDrifter01"},
	{"Honda Civic Type R", "450000", "Chrome kaplama, yarış süspansiyonu.", "CivicLover"},
	{"Volkswagen Golf 7 GTI", "300000", "Günlük kullanım, temiz araç.", "GolfTR"},
	{"Toyota Supra MK4", "2200000", "Efsane motor, 1695HP, drift ayarı hazır.", "JDMKing"},
}

type apiListing struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Price      *float64 `json:"price"`
	SellerName string   `json:"sellerName"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Server base URL")
	session := flag.String("session", "", "Browser session id to seed (value of the cpm_session cookie)")
	rawJSON := flag.Bool("json", false, "Output raw JSON only")
	flag.Parse()

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(30 * time.Second)
	if *session != "" {
		client.SetCookie(&http.Cookie{Name: "cpm_session", Value: *session, Path: "/"})
	}

	for _, car := range demoCars {
		if err := createListing(client, car); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	var listings []apiListing
	resp, err := client.R().SetResult(&listings).Get("/api/listings")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if resp.IsError() {
		fmt.Fprintf(os.Stderr, "Error: listing request failed: %s\n", resp.Status())
		os.Exit(1)
	}

	if *rawJSON {
		jsonBytes, _ := json.MarshalIndent(listings, "", "  ")
		fmt.Println(string(jsonBytes))
		return
	}

	fmt.Printf("Session has %d listings\n\n", len(listings))
	for i, l := range listings {
		price := "NaN"
		if l.Price != nil {
			price = fmt.Sprintf("%.0f", *l.Price)
		}
		fmt.Printf("%d. %s - %s CPM (%s) [%s]\n", i+1, l.Title, price, l.SellerName, l.ID)
	}

	if *session == "" {
		if u, err := url.Parse(*baseURL); err == nil && client.GetClient().Jar != nil {
			for _, c := range client.GetClient().Jar.Cookies(u) {
				if c.Name == "cpm_session" {
					fmt.Printf("\nSeeded a new session: cpm_session=%s\n", c.Value)
				}
			}
		}
	}
}

// createListing drives the create-listing form the way a browser would.
func createListing(client *resty.Client, car demoCar) error {
	resp, err := client.R().Post("/modal/open")
	if err != nil {
		return fmt.Errorf("failed to open modal: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to open modal: %s", resp.Status())
	}

	resp, err = client.R().
		SetFormData(map[string]string{
			"title":       car.Title,
			"price":       car.Price,
			"description": car.Description,
			"sellerName":  car.Seller,
		}).
		Post("/listings")
	if err != nil {
		return fmt.Errorf("failed to submit %q: %w", car.Title, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to submit %q: %s", car.Title, resp.Status())
	}
	return nil
}
