// Package fmxxx names the IO elements reported by Teltonika FMxxx trackers.
package fmxxx

import "strconv"

// IO element ids.
const (
	DIn1          = 1
	DIn2          = 2
	DIn3          = 3
	DIn4          = 4
	AIn1          = 9
	AIn2          = 10
	IButtonID     = 11
	FuelUsedGPS   = 12
	FuelRateGPS   = 13
	EcoScore      = 15
	TotalOd       = 16
	AxisX         = 17
	AxisY         = 18
	AxisZ         = 19
	GSMSignal     = 21
	VehicleSpeed  = 24
	BLETemp1      = 25
	BLEBatt1      = 29
	ExtVolt       = 66
	BatteryVolt   = 67
	BattCurrent   = 68
	GnssStatus    = 69
	DallasTemp1   = 72
	DallasTemp2   = 73
	DallasTemp3   = 74
	DallasTemp4   = 75
	DataMode      = 80
	BLEHumidity1  = 86
	BattLevel     = 113
	DOut1         = 179
	DOut2         = 180
	GnssPDOP      = 181
	GnssHDOP      = 182
	TripOdometer  = 199
	SleepMode     = 200
	LLS1FuelLvl   = 201
	LLS1Temp      = 202
	GsmCellID     = 205
	GsmAreaCode   = 206
	NetworkType   = 237
	Ignition      = 239
	Movement      = 240
	ActiveGsmOpe  = 241
	CrashDetect   = 247
	BTStatus      = 263
	InstantMov    = 303
	DOut3         = 380
	GNDSense      = 381
	DriverCardID  = 406
	UMTSLTECellID = 636
	WakeReason    = 637
	ConnQuality   = 1148
)

// Element is the catalog entry for one IO id.
type Element struct {
	ID          uint16
	Name        string
	Description string
}

// catalog is built once and never written after package init.
var catalog = map[uint16]Element{
	DIn1:          {DIn1, "digital_input_1", "Digital Input 1"},
	DIn2:          {DIn2, "digital_input_2", "Digital Input 2"},
	DIn3:          {DIn3, "digital_input_3", "Digital Input 3"},
	DIn4:          {DIn4, "digital_input_4", "Digital Input 4"},
	AIn1:          {AIn1, "analog_input_1", "Analog Input 1 (mV)"},
	AIn2:          {AIn2, "analog_input_2", "Analog Input 2 (mV)"},
	IButtonID:     {IButtonID, "ibutton_id", "iButton ID"},
	FuelUsedGPS:   {FuelUsedGPS, "fuel_used_gps", "Fuel Used GPS (ml)"},
	FuelRateGPS:   {FuelRateGPS, "fuel_rate_gps", "Fuel Rate GPS (ml/h)"},
	EcoScore:      {EcoScore, "eco_score", "Eco Score"},
	TotalOd:       {TotalOd, "total_odometer", "Total Odometer (m)"},
	AxisX:         {AxisX, "axis_x", "Axis X (mG)"},
	AxisY:         {AxisY, "axis_y", "Axis Y (mG)"},
	AxisZ:         {AxisZ, "axis_z", "Axis Z (mG)"},
	GSMSignal:     {GSMSignal, "gsm_signal", "GSM Signal Strength"},
	VehicleSpeed:  {VehicleSpeed, "speed", "Speed (km/h)"},
	BLETemp1:      {BLETemp1, "ble_temp_1", "BLE Temperature 1 (0.01 °C)"},
	BLEBatt1:      {BLEBatt1, "ble_battery_1", "BLE Battery 1 (%)"},
	ExtVolt:       {ExtVolt, "external_voltage", "External Voltage (mV)"},
	BatteryVolt:   {BatteryVolt, "battery_voltage", "Battery Voltage (mV)"},
	BattCurrent:   {BattCurrent, "battery_current", "Battery Current (mA)"},
	GnssStatus:    {GnssStatus, "gnss_status", "GNSS Status"},
	DallasTemp1:   {DallasTemp1, "dallas_temp_1", "Dallas Temperature 1 (°C)"},
	DallasTemp2:   {DallasTemp2, "dallas_temp_2", "Dallas Temperature 2 (°C)"},
	DallasTemp3:   {DallasTemp3, "dallas_temp_3", "Dallas Temperature 3 (°C)"},
	DallasTemp4:   {DallasTemp4, "dallas_temp_4", "Dallas Temperature 4 (°C)"},
	DataMode:      {DataMode, "data_mode", "Data Mode"},
	BLEHumidity1:  {BLEHumidity1, "ble_humidity_1", "BLE Humidity 1 (0.1 %RH)"},
	BattLevel:     {BattLevel, "battery_level", "Battery Level (%)"},
	DOut1:         {DOut1, "digital_output_1", "Digital Output 1"},
	DOut2:         {DOut2, "digital_output_2", "Digital Output 2"},
	GnssPDOP:      {GnssPDOP, "gnss_pdop", "GNSS PDOP"},
	GnssHDOP:      {GnssHDOP, "gnss_hdop", "GNSS HDOP"},
	TripOdometer:  {TripOdometer, "trip_odometer", "Trip Odometer (m)"},
	SleepMode:     {SleepMode, "sleep_mode", "Sleep Mode"},
	LLS1FuelLvl:   {LLS1FuelLvl, "lls1_fuel_level", "LLS 1 Fuel Level"},
	LLS1Temp:      {LLS1Temp, "lls1_temp", "LLS 1 Temperature (°C)"},
	GsmCellID:     {GsmCellID, "cell_id", "Cell ID"},
	GsmAreaCode:   {GsmAreaCode, "area_code", "Area Code (LAC)"},
	NetworkType:   {NetworkType, "network_type", "Network Type"},
	Ignition:      {Ignition, "ignition", "Ignition"},
	Movement:      {Movement, "movement", "Movement"},
	ActiveGsmOpe:  {ActiveGsmOpe, "active_gsm_operator", "Active GSM Operator"},
	CrashDetect:   {CrashDetect, "crash_detection", "Crash Detection"},
	BTStatus:      {BTStatus, "bt_status", "Bluetooth Status"},
	InstantMov:    {InstantMov, "instant_movement", "Instant Movement"},
	DOut3:         {DOut3, "digital_output_3", "Digital Output 3"},
	GNDSense:      {GNDSense, "ground_sense", "Ground Sense"},
	DriverCardID:  {DriverCardID, "driver_card_id", "Driver Card ID"},
	UMTSLTECellID: {UMTSLTECellID, "umts_lte_cell_id", "UMTS/LTE Cell ID"},
	WakeReason:    {WakeReason, "wake_reason", "Wake Reason"},
	ConnQuality:   {ConnQuality, "connection_quality", "Connection Quality"},
}

// Lookup returns the catalog entry for id. Unknown ids get a synthesized
// "io_<id>" entry; Lookup never fails.
func Lookup(id uint16) Element {
	if el, ok := catalog[id]; ok {
		return el
	}
	s := strconv.Itoa(int(id))
	return Element{ID: id, Name: "io_" + s, Description: "Unknown IO Element " + s}
}

// Known reports whether id has a catalog entry.
func Known(id uint16) bool {
	_, ok := catalog[id]
	return ok
}

// NameOf is Lookup(id).Name.
func NameOf(id uint16) string { return Lookup(id).Name }
