package router

import (
	"time"

	"hospicaja/internal/config"
	"hospicaja/internal/handler"
	"hospicaja/internal/infra"
	"hospicaja/internal/middleware"
	"hospicaja/internal/repository"
	"hospicaja/internal/service"
	"hospicaja/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, inventarioCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	inventarioClient := infra.NewInventarioClient(cfg.InventarioURL)

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	cuentaRepo := repository.NewCuentaRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	depositoRepo := repository.NewDepositoRepository(db)
	descuentoRepo := repository.NewDescuentoRepository(db)
	devolucionRepo := repository.NewDevolucionRepository(db)
	reciboRepo := repository.NewReciboRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	cuentaSvc := service.NewCuentaService(cuentaRepo)
	cajaSvc := service.NewCajaService(cajaRepo, dispatcher, cfg.DesvioUmbral())
	reciboSvc := service.NewReciboService(reciboRepo, cuentaRepo, cajaRepo, dispatcher, cfg.SerieRecibos)
	depositoSvc := service.NewDepositoService(depositoRepo, cajaRepo, reciboRepo, dispatcher)
	descuentoSvc := service.NewDescuentoService(descuentoRepo, cuentaRepo, dispatcher)
	devolucionSvc := service.NewDevolucionService(
		devolucionRepo, cuentaRepo, cajaRepo, reciboSvc, inventarioClient, inventarioCB, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	cuentasH := handler.NewCuentaHandler(cuentaSvc)
	cajaH := handler.NewCajaHandler(cajaSvc)
	recibosH := handler.NewReciboHandler(reciboSvc)
	depositosH := handler.NewDepositoHandler(depositoSvc)
	descuentosH := handler.NewDescuentoHandler(descuentoSvc)
	devolucionesH := handler.NewDevolucionHandler(devolucionSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, inventarioCB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	operativos := middleware.RequireRole("cajero", "supervisor", "administrador")
	supervision := middleware.RequireRole("supervisor", "administrador")

	v1 := r.Group("/v1", jwtMW)
	{
		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", operativos, cajaH.Abrir)
			caja.POST("/movimientos", operativos, cajaH.RegistrarMovimiento)
			caja.POST("/arqueo", operativos, cajaH.Arqueo)
			caja.POST("/cerrar", operativos, cajaH.Cerrar)
			caja.GET("/activa", operativos, cajaH.SesionActiva)
			caja.GET("/:id/reporte", operativos, cajaH.ObtenerReporte)
			caja.GET("/historial", supervision, cajaH.Historial)
		}

		recibos := v1.Group("/recibos")
		{
			recibos.POST("/pagar", operativos, recibosH.PagarCuenta)
			recibos.POST("/:id/cancelar", supervision, recibosH.Cancelar)
			recibos.POST("/:id/reimprimir", operativos, recibosH.Reimprimir)
			recibos.GET("/:id", operativos, recibosH.Obtener)
			recibos.GET("", operativos, recibosH.Listar)
		}

		depositos := v1.Group("/depositos")
		{
			depositos.POST("", operativos, depositosH.Preparar)
			depositos.POST("/:id/depositado", operativos, depositosH.MarcarDepositado)
			depositos.POST("/:id/confirmar", supervision, depositosH.Confirmar)
			depositos.POST("/:id/rechazar", supervision, depositosH.Rechazar)
			depositos.POST("/:id/cancelar", operativos, depositosH.Cancelar)
			depositos.GET("/conciliacion", supervision, depositosH.Conciliacion)
			depositos.GET("/:id", operativos, depositosH.Obtener)
			depositos.GET("", supervision, depositosH.Listar)
		}

		descuentos := v1.Group("/descuentos")
		{
			descuentos.POST("", operativos, descuentosH.Solicitar)
			descuentos.POST("/:id/autorizar", supervision, descuentosH.Autorizar)
			descuentos.POST("/:id/rechazar", supervision, descuentosH.Rechazar)
			descuentos.POST("/:id/aplicar", operativos, descuentosH.Aplicar)
			descuentos.POST("/:id/revertir", middleware.RequireRole("administrador"), descuentosH.Revertir)
			descuentos.GET("/:id", operativos, descuentosH.Obtener)
			descuentos.GET("", supervision, descuentosH.Listar)
		}

		politicas := v1.Group("/politicas-descuento")
		{
			politicas.POST("", middleware.RequireRole("administrador"), descuentosH.CrearPolitica)
			politicas.GET("", operativos, descuentosH.ListarPoliticas)
		}

		devoluciones := v1.Group("/devoluciones")
		{
			devoluciones.POST("", operativos, devolucionesH.Crear)
			devoluciones.POST("/:id/autorizar", supervision, devolucionesH.Autorizar)
			devoluciones.POST("/:id/rechazar", supervision, devolucionesH.Rechazar)
			devoluciones.POST("/:id/procesar", operativos, devolucionesH.Procesar)
			devoluciones.POST("/:id/cancelar", operativos, devolucionesH.Cancelar)
			devoluciones.GET("/:id", operativos, devolucionesH.Obtener)
			devoluciones.GET("", supervision, devolucionesH.Listar)
		}

		motivos := v1.Group("/motivos-devolucion")
		{
			motivos.POST("", middleware.RequireRole("administrador"), devolucionesH.CrearMotivo)
			motivos.GET("", operativos, devolucionesH.ListarMotivos)
		}

		cuentas := v1.Group("/cuentas")
		{
			cuentas.POST("", supervision, cuentasH.Crear)
			cuentas.GET("/:id", operativos, cuentasH.Obtener)
		}

		usuarios := v1.Group("/usuarios", middleware.RequireRole("administrador"))
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
			usuarios.PUT("/:id", usuariosH.Actualizar)
			usuarios.DELETE("/:id", usuariosH.Desactivar)
			usuarios.PATCH("/:id/reactivar", usuariosH.Reactivar)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
