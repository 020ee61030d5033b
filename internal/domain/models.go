package domain

// Ticker is the latest traded price for a symbol as reported by the upstream
// exchange. Timestamp is the exchange's own time in milliseconds.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp_ms"`
	Exchange  string  `json:"source_exchange"`
}

// Candle is a single OHLCV record. OpenTime is the start of the candle
// period in milliseconds.
type Candle struct {
	OpenTime int64   `json:"timestamp_ms"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// CandleSeries is an ordered historical query result for one
// symbol/timeframe combination.
type CandleSeries struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"data"`
	Exchange  string   `json:"source_exchange"`
}
