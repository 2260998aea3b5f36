package device

import (
	"fmt"
	"sort"
)

// Model describes a supported Shelly Gen1 model.
type Model struct {
	// Type is the model tag the device advertises, e.g. "SHSW-1".
	Type string `json:"type"`

	// Name is the marketing name.
	Name string `json:"name"`

	// Properties maps CoIoT property IDs to property names.
	Properties map[int]string `json:"-"`
}

// PropertyName returns the name for a CoIoT property ID, or false if the
// model does not define it.
func (m Model) PropertyName(id int) (string, bool) {
	name, ok := m.Properties[id]
	return name, ok
}

// Shared property sets. CoIoT v2 IDs encode the block in the hundreds digit.
var (
	relayProps = map[int]string{
		1101: "relay0",
		1201: "relay1",
		2101: "input0",
		2102: "inputEvent0",
		2103: "inputEventCount0",
		2201: "input1",
		2202: "inputEvent1",
		2203: "inputEventCount1",
		3104: "deviceTemperature",
		3105: "overTemperature",
	}

	meterProps = map[int]string{
		4101: "power0",
		4103: "energy0",
		4201: "power1",
		4203: "energy1",
		6102: "overPower0",
		6202: "overPower1",
	}

	rollerProps = map[int]string{
		1102: "rollerState",
		1103: "rollerPosition",
		1104: "rollerStopReason",
		4102: "rollerPower",
		4104: "rollerEnergy",
	}

	lightProps = map[int]string{
		1101: "switch",
		5101: "brightness",
		5102: "gain",
		5103: "colourTemperature",
		5105: "red",
		5106: "green",
		5107: "blue",
		5108: "white",
		4101: "power0",
		4103: "energy0",
	}

	batteryProps = map[int]string{
		3111: "battery",
		3112: "charger",
		9102: "wakeupEvent",
	}

	climateProps = map[int]string{
		3101: "temperature",
		3102: "temperatureF",
		3103: "humidity",
		3115: "sensorError",
	}

	emProps = map[int]string{
		4105: "power0",
		4106: "energy0",
		4107: "returnedEnergy0",
		4108: "voltage0",
		4205: "power1",
		4206: "energy1",
		4207: "returnedEnergy1",
		4208: "voltage1",
		4305: "power2",
		4306: "energy2",
		4307: "returnedEnergy2",
		4308: "voltage2",
	}

	doorWindowProps = map[int]string{
		3106: "illuminance",
		3108: "open",
		3109: "tilt",
		6110: "vibration",
	}

	// legacyRelayProps covers CoIoT v1 firmware still found on older units.
	legacyRelayProps = map[int]string{
		111: "power0",
		112: "relay0",
		118: "input0",
		122: "relay1",
	}
)

// models is the table of supported models.
var models = map[string]Model{}

func init() {
	register("SHSW-1", "Shelly 1", relayProps, legacyRelayProps)
	register("SHSW-PM", "Shelly 1PM", relayProps, meterProps, legacyRelayProps)
	register("SHSW-21", "Shelly 2", relayProps, meterProps, rollerProps)
	register("SHSW-25", "Shelly 2.5", relayProps, meterProps, rollerProps)
	register("SHPLG-S", "Shelly Plug S", relayProps, meterProps)
	register("SHPLG-1", "Shelly Plug", relayProps, meterProps)
	register("SHIX3-1", "Shelly i3", relayProps, map[int]string{
		2301: "input2",
		2302: "inputEvent2",
		2303: "inputEventCount2",
	})
	register("SHDM-1", "Shelly Dimmer", relayProps, lightProps)
	register("SHDM-2", "Shelly Dimmer 2", relayProps, lightProps)
	register("SHRGBW2", "Shelly RGBW2", lightProps)
	register("SHBLB-1", "Shelly Bulb", lightProps)
	register("SHHT-1", "Shelly H&T", climateProps, batteryProps)
	register("SHWT-1", "Shelly Flood", climateProps, batteryProps, map[int]string{
		6106: "flood",
	})
	register("SHDW-1", "Shelly Door/Window", batteryProps, doorWindowProps)
	register("SHDW-2", "Shelly Door/Window 2", batteryProps, climateProps, doorWindowProps)
	register("SHEM", "Shelly EM", relayProps, emProps)
	register("SHEM-3", "Shelly 3EM", relayProps, emProps)
	register("SHBTN-1", "Shelly Button1", batteryProps, map[int]string{
		2102: "inputEvent0",
		2103: "inputEventCount0",
	})
	register("SHGS-1", "Shelly Gas", map[int]string{
		3107: "concentration",
		3113: "sensorOperation",
		3114: "selfTest",
		6108: "gas",
		9104: "valve",
	})
	register("SHSEN-1", "Shelly Sense", climateProps, batteryProps, map[int]string{
		3106: "illuminance",
		6107: "motion",
	})
}

// register merges property sets into a model entry.
func register(modelType, name string, sets ...map[int]string) {
	props := make(map[int]string)
	for _, set := range sets {
		for id, prop := range set {
			props[id] = prop
		}
	}
	models[modelType] = Model{Type: modelType, Name: name, Properties: props}
}

// Lookup returns the model for a type tag, or an error matching
// ErrUnknownModel when the tag is not supported.
func Lookup(modelType string) (Model, error) {
	m, ok := models[modelType]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelType)
	}
	return m, nil
}

// Models returns every supported model ordered by type tag.
func Models() []Model {
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
