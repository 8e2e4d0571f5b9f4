package checkout

import (
	"encoding/json"
	"net/http"

	"bundlesync/services/bundle"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Input mirrors the checkout evaluation boundary: the cart plus the opaque
// discount config JSON read back from the discount resource.
type Input struct {
	Cart struct {
		Lines []CartLine `json:"lines"`
	} `json:"cart"`
	DiscountConfig json.RawMessage `json:"discountConfig"`
}

type Output struct {
	Operations []Candidate `json:"operations"`
}

// Run evaluates a cart against a discount config. A thrown error here would
// break checkout for the whole cart, so malformed input degrades to an
// empty operation list.
func Run(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, Output{Operations: []Candidate{}})
		return
	}

	var cfg bundle.DiscountConfig
	if len(in.DiscountConfig) > 0 {
		// Malformed config produces no candidates, never an error.
		_ = json.Unmarshal(in.DiscountConfig, &cfg)
	}

	ops := Evaluate(cfg, in.Cart.Lines)
	if ops == nil {
		ops = []Candidate{}
	}

	c.JSON(http.StatusOK, Output{Operations: ops})
}

var Module = fx.Module("checkout.module",
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine) {
	engine.POST("/checkout/run", Run)
}
