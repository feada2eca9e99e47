package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/listing-studio/internal/utils"
	"github.com/menta2k/listing-studio/pkg/collab"
	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/session"
	"github.com/menta2k/listing-studio/pkg/types"
)

const previewQuality = 0.85

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/presets", s.listPresets)
	api.Post("/sessions", s.createSession)
	api.Post("/shutdown", func(c *fiber.Ctx) error {
		s.Shutdown()
		return c.SendStatus(http.StatusNoContent)
	})

	sess := api.Group("/sessions/:id")
	sess.Get("/", s.withSession(s.getState))
	sess.Delete("/", s.deleteSession)
	sess.Post("/pattern", s.withSession(s.setPattern))
	sess.Delete("/pattern", s.withSession(s.clearPattern))
	sess.Post("/preset", s.withSession(s.selectPreset))
	sess.Post("/params", s.withSession(s.setParams))
	sess.Put("/corners", s.withSession(s.setCorners))
	sess.Patch("/corners/:corner", s.withSession(s.moveCorner))
	sess.Post("/corners/detect", s.withSession(s.detectCorners))
	sess.Post("/corners/reset", s.withSession(s.resetCorners))
	sess.Post("/anchor/auto", s.withSession(s.autoAnchor))
	sess.Get("/preview", s.withSession(s.preview))
	sess.Post("/apply", s.withSession(s.apply))
	sess.Post("/batch", s.withSession(s.batch))
	sess.Get("/results", s.withSession(s.listResults))
	sess.Get("/results/:preset", s.withSession(s.downloadResult))
	sess.Delete("/results", s.withSession(s.clearResults))
	sess.Get("/archive", s.withSession(s.downloadArchive))
	sess.Post("/upscale", s.withSession(s.upscale))
	sess.Post("/generate", s.withSession(s.generate))
}

type sessionHandler func(c *fiber.Ctx, sess *session.Session) error

func (s *Server) withSession(h sessionHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.config.Store.Get(c.Params("id"))
		if err != nil {
			return err
		}
		return h(c, sess)
	}
}

func (s *Server) listPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": presets.All(),
		"groups":  presets.Grouped(),
	})
}

func (s *Server) createSession(c *fiber.Ctx) error {
	data, err := s.readUpload(c, "image")
	if err != nil {
		return err
	}
	info, err := s.config.Analyzer.Inspect(data)
	if err != nil {
		return err
	}
	img, _, err := s.config.Processor.Decode(c.UserContext(), data)
	if err != nil {
		return err
	}
	sess, err := s.config.Store.Create(img)
	if err != nil {
		return err
	}
	log.Ctx(c.UserContext()).Info().
		Str("session", sess.ID()).
		Int("width", info.Width).
		Int("height", info.Height).
		Str("format", info.Format).
		Msg("session created")
	return c.Status(http.StatusCreated).JSON(sess.State())
}

func (s *Server) getState(c *fiber.Ctx, sess *session.Session) error {
	return c.JSON(sess.State())
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	if err := s.config.Store.Delete(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) setPattern(c *fiber.Ctx, sess *session.Session) error {
	data, err := s.readUpload(c, "image")
	if err != nil {
		return err
	}
	if _, err := s.config.Analyzer.Inspect(data); err != nil {
		return err
	}
	img, _, err := s.config.Processor.Decode(c.UserContext(), data)
	if err != nil {
		return err
	}
	sess.SetPattern(img)
	return c.JSON(sess.State())
}

func (s *Server) clearPattern(c *fiber.Ctx, sess *session.Session) error {
	sess.SetPattern(nil)
	return c.JSON(sess.State())
}

type presetRequest struct {
	ID     string     `json:"id"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Mode   types.Mode `json:"mode"`
}

func (s *Server) selectPreset(c *fiber.Ctx, sess *session.Session) error {
	var req presetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ID != "" {
		if err := sess.SelectPreset(req.ID); err != nil {
			return err
		}
		return c.JSON(sess.State())
	}
	p, err := presets.Custom(req.Width, req.Height, req.Mode)
	if err != nil {
		return err
	}
	if err := sess.SelectCustom(p); err != nil {
		return err
	}
	return c.JSON(sess.State())
}

type paramsRequest struct {
	Zoom   *float64      `json:"zoom"`
	Anchor *types.Anchor `json:"anchor"`
	Pan    *struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	} `json:"pan"`
	Center *types.Point `json:"center"`
}

// setParams applies anchor, zoom, center and pan, in that order.
func (s *Server) setParams(c *fiber.Ctx, sess *session.Session) error {
	var req paramsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Anchor != nil {
		if _, err := sess.SetAnchor(*req.Anchor); err != nil {
			return err
		}
	}
	if req.Zoom != nil {
		sess.SetZoom(*req.Zoom)
	}
	if req.Center != nil {
		sess.CenterOn(req.Center.X, req.Center.Y)
	}
	if req.Pan != nil {
		sess.Pan(req.Pan.DX, req.Pan.DY)
	}
	return c.JSON(sess.State())
}

func (s *Server) setCorners(c *fiber.Ctx, sess *session.Session) error {
	var wc types.WallCoordinates
	if err := c.BodyParser(&wc); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := sess.SetCorners(wc); err != nil {
		return err
	}
	return c.JSON(sess.State())
}

func (s *Server) moveCorner(c *fiber.Ctx, sess *session.Session) error {
	var p types.Point
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	wc, err := sess.MoveCorner(types.Corner(c.Params("corner")), p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"corners": wc})
}

func (s *Server) detectCorners(c *fiber.Ctx, sess *session.Session) error {
	wc, fallback := sess.EstimateCorners(c.UserContext())
	return c.JSON(fiber.Map{"corners": wc, "fallback": fallback})
}

func (s *Server) resetCorners(c *fiber.Ctx, sess *session.Session) error {
	return c.JSON(fiber.Map{"corners": sess.ResetCorners()})
}

func (s *Server) autoAnchor(c *fiber.Ctx, sess *session.Session) error {
	a, err := sess.AutoAnchor(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"anchor": a, "area": sess.CropArea()})
}

func (s *Server) preview(c *fiber.Ctx, sess *session.Session) error {
	width := c.QueryInt("width", 0)
	format, err := types.ParseFormat(c.Query("format", "jpeg"))
	if err != nil {
		return err
	}
	img, err := sess.Preview(c.UserContext(), width)
	if err != nil {
		return err
	}
	enc, err := s.config.Processor.Encode(c.UserContext(), img, processing.EncodeOptions{Format: format, Quality: processing.Quality(previewQuality)})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, enc.Format.ContentType())
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(enc.Data)
}

type resultInfo struct {
	Preset string       `json:"preset"`
	Format types.Format `json:"format"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Size   string       `json:"size"`
	URL    string       `json:"url"`
}

func (s *Server) resultInfo(sessID, presetID string, enc types.EncodedImage) resultInfo {
	return resultInfo{
		Preset: presetID,
		Format: enc.Format,
		Width:  enc.Width,
		Height: enc.Height,
		Size:   utils.FormatFileSize(int64(len(enc.Data))),
		URL:    fmt.Sprintf("/api/sessions/%s/results/%s", sessID, presetID),
	}
}

func (s *Server) apply(c *fiber.Ctx, sess *session.Session) error {
	id, enc, err := sess.Apply(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(s.resultInfo(sess.ID(), id, enc))
}

func (s *Server) batch(c *fiber.Ctx, sess *session.Session) error {
	var req struct {
		Presets []string `json:"presets"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	done, err := sess.Batch(c.UserContext(), req.Presets)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"presets": done})
}

func (s *Server) listResults(c *fiber.Ctx, sess *session.Session) error {
	snap := sess.Results().Snapshot()
	out := make([]resultInfo, 0, len(snap))
	for _, id := range sess.Results().Keys() {
		if enc, ok := snap[id]; ok {
			out = append(out, s.resultInfo(sess.ID(), id, enc))
		}
	}
	return c.JSON(fiber.Map{"results": out})
}

func (s *Server) downloadResult(c *fiber.Ctx, sess *session.Session) error {
	id := c.Params("preset")
	enc, ok := sess.Results().Get(id)
	if !ok {
		return fiber.NewError(http.StatusNotFound, "no result for preset "+strconv.Quote(id))
	}
	c.Set(fiber.HeaderContentType, enc.Format.ContentType())
	c.Attachment(utils.ResultFilename(s.config.FilePrefix, id, enc.Format))
	return c.Send(enc.Data)
}

func (s *Server) downloadArchive(c *fiber.Ctx, sess *session.Session) error {
	snap := sess.Results().Snapshot()
	if len(snap) == 0 {
		return fiber.NewError(http.StatusNotFound, "no results")
	}
	var buf bytes.Buffer
	if err := utils.ZipResults(&buf, s.config.FilePrefix, snap); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Attachment(utils.SanitizeFilename(s.config.FilePrefix+"results") + ".zip")
	return c.Send(buf.Bytes())
}

func (s *Server) clearResults(c *fiber.Ctx, sess *session.Session) error {
	sess.ClearResults()
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) upscale(c *fiber.Ctx, sess *session.Session) error {
	if s.config.Upscaler == nil {
		return fiber.NewError(http.StatusNotImplemented, "no upscaler configured")
	}
	var req struct {
		Scale float64 `json:"scale"`
		Model string  `json:"model"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := sess.Upscale(c.UserContext(), s.config.Upscaler, req.Scale, req.Model, collab.DefaultAwaitOptions()); err != nil {
		return err
	}
	return c.JSON(sess.State())
}

func (s *Server) generate(c *fiber.Ctx, sess *session.Session) error {
	if s.config.Generator == nil {
		return fiber.NewError(http.StatusNotImplemented, "no generator configured")
	}
	var req struct {
		Prompt      string `json:"prompt"`
		AspectRatio string `json:"aspectRatio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := sess.Generate(c.UserContext(), s.config.Generator, req.Prompt, req.AspectRatio); err != nil {
		return err
	}
	return c.JSON(sess.State())
}
