// Package indicator computes technical indicators (EMA, SMA, RSI) from
// OHLCV candle data supplied by upstream market-data nodes.
package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/coreza/coreza/pkg/handlers"
)

const Service = "indicator"

// Register wires the indicator handlers into the registry, with bare-name
// aliases so a dispatch path's final segment resolves directly.
func Register(reg *handlers.Registry) {
	reg.Register(Service, "ema", EMA)
	reg.Register(Service, "sma", SMA)
	reg.Register(Service, "rsi", RSI)

	reg.Alias("ema", Service, "ema")
	reg.Alias("sma", Service, "sma")
	reg.Alias("rsi", Service, "rsi")
}

func EMA(_ context.Context, inputs map[string]any) (map[string]any, error) {
	closes, window, errOut := parseSeries(inputs)
	if errOut != nil {
		return errOut, nil
	}

	if len(closes) < window {
		return errorOutput("candle_data must contain at least window bars"), nil
	}

	values := make([]float64, len(closes))
	alpha := 2.0 / (float64(window) + 1)

	values[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		values[i] = alpha*closes[i] + (1-alpha)*values[i-1]
	}

	return seriesOutput("ema", window, values), nil
}

func SMA(_ context.Context, inputs map[string]any) (map[string]any, error) {
	closes, window, errOut := parseSeries(inputs)
	if errOut != nil {
		return errOut, nil
	}

	if len(closes) < window {
		return errorOutput("candle_data must contain at least window bars"), nil
	}

	values := make([]float64, 0, len(closes)-window+1)

	var sum float64
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}

		if i >= window-1 {
			values = append(values, sum/float64(window))
		}
	}

	return seriesOutput("sma", window, values), nil
}

// RSI computes the relative strength index using Wilder's smoothing.
func RSI(_ context.Context, inputs map[string]any) (map[string]any, error) {
	closes, window, errOut := parseSeries(inputs)
	if errOut != nil {
		return errOut, nil
	}

	if len(closes) <= window {
		return errorOutput("candle_data must contain more than window bars"), nil
	}

	var avgGain, avgLoss float64

	for i := 1; i <= window; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}

	avgGain /= float64(window)
	avgLoss /= float64(window)

	values := make([]float64, 0, len(closes)-window)
	values = append(values, rsiValue(avgGain, avgLoss))

	for i := window + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]

		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		avgGain = (avgGain*float64(window-1) + gain) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + loss) / float64(window)

		values = append(values, rsiValue(avgGain, avgLoss))
	}

	return seriesOutput("rsi", window, values), nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - 100/(1+rs)
}

func seriesOutput(name string, window int, values []float64) map[string]any {
	return map[string]any{
		"indicator": name,
		"window":    window,
		"values":    values,
		"last":      values[len(values)-1],
	}
}

func errorOutput(message string) map[string]any {
	return map[string]any{"error": message}
}

// parseSeries extracts the close series and window from handler inputs.
// candle_data may be a JSON string, a list of bar objects, or a mapping of
// t/o/h/l/c/v arrays.
func parseSeries(inputs map[string]any) ([]float64, int, map[string]any) {
	window, err := parseWindow(inputs["window"])
	if err != nil {
		return nil, 0, errorOutput(err.Error())
	}

	raw := inputs["candle_data"]
	if raw == nil {
		return nil, 0, errorOutput("window and candle_data are required")
	}

	if s, ok := raw.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, 0, errorOutput("candle_data must be valid JSON string or array of objects")
		}

		raw = decoded
	}

	closes, err := extractCloses(raw)
	if err != nil {
		return nil, 0, errorOutput(err.Error())
	}

	return closes, window, nil
}

func parseWindow(raw any) (int, error) {
	var window int

	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("window and candle_data are required")
	case float64:
		window = int(v)
	case int:
		window = v
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("window must be a positive integer")
		}

		window = parsed
	default:
		return 0, fmt.Errorf("window must be a positive integer")
	}

	if window < 1 {
		return 0, fmt.Errorf("window must be a positive integer")
	}

	return window, nil
}

func extractCloses(raw any) ([]float64, error) {
	switch data := raw.(type) {
	case []any:
		if len(data) == 0 {
			return nil, fmt.Errorf("candle_data array cannot be empty")
		}

		closes := make([]float64, 0, len(data))

		for _, item := range data {
			bar, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("candle_data bars must be objects")
			}

			value := bar["close"]
			if value == nil {
				value = bar["c"]
			}

			c, ok := toFloat(value)
			if !ok {
				return nil, fmt.Errorf("candle_data bars must carry a numeric close")
			}

			closes = append(closes, c)
		}

		return closes, nil
	case map[string]any:
		series, ok := data["c"].([]any)
		if !ok {
			return nil, fmt.Errorf("candle_data JSON must have keys t,o,h,l,c,v arrays")
		}

		closes := make([]float64, 0, len(series))

		for _, item := range series {
			c, ok := toFloat(item)
			if !ok {
				return nil, fmt.Errorf("candle_data close values must be numeric")
			}

			closes = append(closes, c)
		}

		return closes, nil
	default:
		return nil, fmt.Errorf("candle_data must be valid JSON string or array of objects")
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f, true
		}
	}

	return 0, false
}
