package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"nftmarket/native/marketplace"
)

type saleRow struct {
	Index        int32  `parquet:"name=index, type=INT32"`
	Status       string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalSupply  int64  `parquet:"name=total_supply, type=INT64"`
	TokensMinted int64  `parquet:"name=tokens_minted, type=INT64"`
	StartTime    string `parquet:"name=start_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	EndTime      string `parquet:"name=end_time, type=BYTE_ARRAY, convertedtype=UTF8"`
	PriceDenom   string `parquet:"name=price_denom, type=BYTE_ARRAY, convertedtype=UTF8"`
	PriceAmount  string `parquet:"name=price_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Disabled     bool   `parquet:"name=disabled, type=BOOLEAN"`
}

func runExportSales(args []string) error {
	fs := flag.NewFlagSet("export-sales", flag.ExitOnError)
	node := fs.String("node", defaultNode, "Base URL of a marketd node")
	out := fs.String("out", "sales.parquet", "Output parquet file")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	sales, err := fetchSales(ctx, http.DefaultClient, *node)
	if err != nil {
		return err
	}
	if err := writeSalesParquet(*out, sales); err != nil {
		return err
	}
	fmt.Printf("wrote %d sales to %s\n", len(sales), *out)
	return nil
}

func fetchSales(ctx context.Context, client *http.Client, node string) ([]marketplace.SaleView, error) {
	endpoint := strings.TrimRight(node, "/") + "/v1/sales"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sales: unexpected status %s", resp.Status)
	}
	var payload marketplace.SalesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode sales: %w", err)
	}
	return payload.Sales, nil
}

func writeSalesParquet(path string, sales []marketplace.SaleView) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(saleRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, view := range sales {
		if view.Sale == nil {
			continue
		}
		row := &saleRow{
			Index:        int32(view.Index),
			Status:       string(view.Status),
			TotalSupply:  int64(view.TotalSupply),
			TokensMinted: int64(view.TokensMinted),
			StartTime:    time.Unix(view.StartTime, 0).UTC().Format(time.RFC3339),
			EndTime:      time.Unix(view.EndTime, 0).UTC().Format(time.RFC3339),
			PriceDenom:   view.Price.Denom,
			PriceAmount:  view.Price.AmountOrZero().Dec(),
			Disabled:     view.Disabled,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("export: close parquet file: %w", err)
	}
	return nil
}
