package handlers

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/cardio-risk/internal/logging"
	"github.com/example/cardio-risk/internal/model"
	"github.com/example/cardio-risk/internal/patient"
	"github.com/example/cardio-risk/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

// Assessor is the subset of the use case the handlers need.
type Assessor interface {
	Assess(ctx context.Context, in patient.Input) (*usecase.Assessment, error)
	Artifacts() *model.Artifacts
	GetMetricsSummary() *usecase.MetricsSummary
}

// PredictRequest is the five-field input accepted by the form and the JSON
// API. The binding ranges mirror the form widget bounds.
type PredictRequest struct {
	Age                  int    `json:"age" form:"age" binding:"required,min=20,max=100"`
	Sex                  string `json:"sex" form:"sex" binding:"required"`
	ChestPainType        string `json:"chest_pain_type" form:"chest_pain_type" binding:"required"`
	RestingBloodPressure int    `json:"resting_blood_pressure" form:"resting_blood_pressure" binding:"required,min=80,max=200"`
	Cholesterol          int    `json:"cholesterol" form:"cholesterol" binding:"required,min=100,max=600"`
}

// Input coerces the labels into the patient enums.
func (r PredictRequest) Input() (patient.Input, error) {
	sex, err := patient.ParseSex(r.Sex)
	if err != nil {
		return patient.Input{}, err
	}
	cp, err := patient.ParseChestPainType(r.ChestPainType)
	if err != nil {
		return patient.Input{}, err
	}
	return patient.Input{
		Age:                  r.Age,
		Sex:                  sex,
		ChestPain:            cp,
		RestingBloodPressure: r.RestingBloodPressure,
		Cholesterol:          r.Cholesterol,
	}, nil
}

// PredictResponse is the JSON body returned for an assessment.
type PredictResponse struct {
	RequestID      string             `json:"request_id"`
	Record         patient.Record     `json:"record"`
	PredictedClass int                `json:"predicted_class"`
	Label          string             `json:"label"`
	RiskLabel      string             `json:"risk_label"`
	Probabilities  ProbabilityPayload `json:"probabilities"`
	Cached         bool               `json:"cached"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ProbabilityPayload names the two class probabilities.
type ProbabilityPayload struct {
	Healthy float64 `json:"healthy"`
	Disease float64 `json:"disease"`
}

// NewPredictResponse converts an assessment for the wire.
func NewPredictResponse(a *usecase.Assessment) PredictResponse {
	return PredictResponse{
		RequestID:      a.RequestID,
		Record:         a.Record,
		PredictedClass: a.Prediction.Class,
		Label:          a.Prediction.Label(),
		RiskLabel:      a.Prediction.RiskLabel(),
		Probabilities: ProbabilityPayload{
			Healthy: a.Prediction.Probabilities[model.ClassHealthy],
			Disease: a.Prediction.Probabilities[model.ClassDisease],
		},
		Cached:    a.Cached,
		CreatedAt: a.CreatedAt,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc Assessor) {
	router.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")))

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if a := uc.Artifacts(); a != nil {
			body["artifacts"] = a.Fingerprint()
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "form.html", newFormView(defaultRequest()))
	})

	router.POST("/", func(c *gin.Context) {
		var req PredictRequest
		if err := c.ShouldBind(&req); err != nil {
			view := newFormView(req)
			view.Error = err.Error()
			c.HTML(http.StatusBadRequest, "form.html", view)
			return
		}
		view := newFormView(req)
		in, err := req.Input()
		if err != nil {
			view.Error = err.Error()
			c.HTML(http.StatusBadRequest, "form.html", view)
			return
		}
		view.Fields = patient.Assemble(in).Fields()

		assessment, err := uc.Assess(c.Request.Context(), in)
		if err != nil {
			view.Error = err.Error()
			c.HTML(statusFor(err), "form.html", view)
			return
		}
		view.Result = &assessment.Prediction
		c.HTML(http.StatusOK, "form.html", view)
	})

	api := router.Group("/api/v1")
	api.GET("/schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, newSchema(uc.Artifacts()))
	})

	api.POST("/predict", func(c *gin.Context) {
		var req PredictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in, err := req.Input()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		assessment, err := uc.Assess(c.Request.Context(), in)
		if err != nil {
			c.JSON(statusFor(err), errorBody(err))
			return
		}
		c.JSON(http.StatusOK, NewPredictResponse(assessment))
	})

	api.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, uc.GetMetricsSummary())
	})
}

// errorBody carries the request id of a failed assessment so the client can
// match it against the server logs.
func errorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	if id := logging.RequestIDOf(err); id != "" {
		body["request_id"] = id
	}
	return body
}

func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func defaultRequest() PredictRequest {
	in := patient.DefaultInput()
	return PredictRequest{
		Age:                  in.Age,
		Sex:                  in.Sex.String(),
		ChestPainType:        in.ChestPain.Label(),
		RestingBloodPressure: in.RestingBloodPressure,
		Cholesterol:          in.Cholesterol,
	}
}
