package respond

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// FormatETag renders a version as a weak ETag, W/"3".
func FormatETag(version int) string {
	return fmt.Sprintf(`W/"%d"`, version)
}

// SetETag sets the ETag response header for version.
func SetETag(c echo.Context, version int) {
	c.Response().Header().Set("ETag", FormatETag(version))
}

// IfMatchVersion reads the If-Match header. It accepts W/"3", "3" and 3 and
// reports ok=false when the header is absent.
func IfMatchVersion(c echo.Context) (version int, ok bool, err error) {
	raw := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if raw == "" {
		return 0, false, nil
	}
	v := strings.TrimPrefix(raw, "W/")
	v = strings.Trim(v, `"`)
	version, err = strconv.Atoi(v)
	if err != nil || version <= 0 {
		return 0, false, BadRequest("If-Match must carry a positive version, e.g. W/\"3\"")
	}
	return version, true, nil
}
