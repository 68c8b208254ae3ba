package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadSlippageSamples parses CSV rows of quantity_usd,slippage_usd.
// A non-numeric first row is treated as a header.
func ReadSlippageSamples(r io.Reader) ([]SlippageSample, error) {
	var out []SlippageSample
	err := readRows(r, 2, func(line int, rec []string) error {
		q, err := parseField(line, "quantity_usd", rec[0])
		if err != nil {
			return err
		}
		s, err := parseField(line, "slippage_usd", rec[1])
		if err != nil {
			return err
		}
		out = append(out, SlippageSample{QuantityUSD: q, SlippageUSD: s})
		return nil
	})
	return out, err
}

// ReadFillSamples parses CSV rows of volatility,quantity_usd,maker where
// maker is a boolean (true/false, 1/0, maker/taker).
func ReadFillSamples(r io.Reader) ([]FillSample, error) {
	var out []FillSample
	err := readRows(r, 3, func(line int, rec []string) error {
		v, err := parseField(line, "volatility", rec[0])
		if err != nil {
			return err
		}
		q, err := parseField(line, "quantity_usd", rec[1])
		if err != nil {
			return err
		}
		maker, err := parseSide(rec[2])
		if err != nil {
			return fmt.Errorf("line %d: maker: %w", line, err)
		}
		out = append(out, FillSample{Volatility: v, QuantityUSD: q, Maker: maker})
		return nil
	})
	return out, err
}

func readRows(r io.Reader, fields int, row func(line int, rec []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == 1 {
			if _, err := strconv.ParseFloat(rec[0], 64); err != nil {
				continue // header
			}
		}
		if err := row(line, rec); err != nil {
			return err
		}
	}
}

func parseField(line int, name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", line, name, err)
	}
	return v, nil
}

func parseSide(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maker":
		return true, nil
	case "taker":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
