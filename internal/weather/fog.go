package weather

// Weather codes (WMO) reported for fog and depositing rime fog.
var fogCodes = map[int64]bool{45: true, 48: true}

var fogConditionColumns = []string{"temperature_2m", "dew_point_2m", "relative_humidity_2m", "wind_speed_10m"}

// FogFromWeatherCode returns 1 for fog codes and 0 otherwise.
func FogFromWeatherCode(code int64) int {
	if fogCodes[code] {
		return 1
	}
	return 0
}

// FogFromConditions applies the dew-point spread rule: spread <= 2 K,
// relative humidity >= 90 % and wind <= 5 m/s.
func FogFromConditions(temp, dewPoint, humidity, windSpeed float64) bool {
	return temp-dewPoint <= 2 && humidity >= 90 && windSpeed <= 5
}

// WithFog returns a copy of values with a "fog" column. The weather code wins
// when present; otherwise the condition rule is applied when all of its
// inputs are numeric. Without either, values are returned unchanged.
func WithFog(values map[string]any) map[string]any {
	out := make(map[string]any, len(values)+1)
	for k, v := range values {
		out[k] = v
	}

	if raw, ok := values["weather_code"]; ok && raw != nil {
		code, err := ToDecimal(raw)
		if err == nil {
			out["fog"] = FogFromWeatherCode(code.IntPart())
			return out
		}
	}

	inputs := make([]float64, 0, len(fogConditionColumns))
	for _, name := range fogConditionColumns {
		raw, ok := values[name]
		if !ok || raw == nil {
			return out
		}
		d, err := ToDecimal(raw)
		if err != nil {
			return out
		}
		inputs = append(inputs, d.InexactFloat64())
	}

	fog := 0
	if FogFromConditions(inputs[0], inputs[1], inputs[2], inputs[3]) {
		fog = 1
	}
	out["fog"] = fog
	return out
}
