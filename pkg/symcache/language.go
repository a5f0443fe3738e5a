package symcache

import "debug/dwarf"

// DW_LANG_* codes
const (
	langC89          = 0x01
	langC            = 0x02
	langCPlusPlus    = 0x04
	langC99          = 0x0c
	langObjC         = 0x10
	langObjCPlusPlus = 0x11
	langD            = 0x13
	langGo           = 0x16
	langCPlusPlus03  = 0x19
	langCPlusPlus11  = 0x1a
	langRust         = 0x1c
	langC11          = 0x1d
	langSwift        = 0x1e
	langCPlusPlus14  = 0x21
	langZig          = 0x27
	langCPlusPlus17  = 0x2a
	langCPlusPlus20  = 0x2b
	langC17          = 0x2c
)

const languageUnknown = "unknown"

func languageOf(cu *dwarf.Entry) string {
	code, _ := cu.Val(dwarf.AttrLanguage).(int64)
	switch code {
	case langC89, langC, langC99, langC11, langC17:
		return "c"
	case langCPlusPlus, langCPlusPlus03, langCPlusPlus11, langCPlusPlus14, langCPlusPlus17, langCPlusPlus20:
		return "cpp"
	case langObjC:
		return "objc"
	case langObjCPlusPlus:
		return "objcpp"
	case langRust:
		return "rust"
	case langGo:
		return "go"
	case langSwift:
		return "swift"
	case langD:
		return "d"
	case langZig:
		return "zig"
	default:
		return languageUnknown
	}
}
